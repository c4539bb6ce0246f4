package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zgt/job-scout/internal/jobs"
	"github.com/zgt/job-scout/internal/store"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and update stored jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored jobs",
	Run: func(cmd *cobra.Command, _ []string) {
		listJobs(cmd)
	},
}

var jobsSetStatusCmd = &cobra.Command{
	Use:   "set-status",
	Short: "Change the status of a stored job",
	Long: `Change the status of a stored job identified by company, role and link.
Without identity flags the job is picked from a list, without --status the status is picked too.`,
	Run: func(cmd *cobra.Command, _ []string) {
		setJobStatus(cmd)
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd, jobsSetStatusCmd)

	jobsListCmd.Flags().String("status", "", "show only jobs with this status")

	jobsSetStatusCmd.Flags().String("company", "", "company of the job")
	jobsSetStatusCmd.Flags().String("role", "", "role of the job")
	jobsSetStatusCmd.Flags().String("link", "", "job link")
	jobsSetStatusCmd.Flags().String("status", "", "new status: "+fmt.Sprint(jobs.StatusNames()))
}

func openStore(ctx context.Context, logger *zap.Logger, config *Config) (store.Store, func()) {
	d := &deps{}
	st, err := newStore(ctx, config.Store, logger, d)
	if err != nil {
		logger.Fatal("opening the store", zap.Error(err))
	}
	return st, d.Close
}

func listJobs(cmd *cobra.Command) {
	ctx := context.Background()
	logger := newLogger()
	config := mustConfig(logger)

	st, closeStore := openStore(ctx, logger, config)
	defer closeStore()

	var filter jobs.Status
	if raw, _ := cmd.Flags().GetString("status"); raw != "" {
		status, err := jobs.ParseStatus(raw)
		if err != nil {
			logger.Fatal("invalid status filter", zap.Error(err))
		}
		filter = status
	}

	items, err := st.ReadAll(ctx)
	if err != nil {
		logger.Fatal("reading jobs", zap.Error(err))
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STATUS\tRATING\tCOMPANY\tROLE\tLOCATION\tLINK")
	shown := 0
	for _, job := range items {
		if filter != "" && job.Status != filter {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			job.Status, jobs.FormatRating(job.Rating), job.Company, job.Role, job.Location, job.JobLink)
		shown++
	}
	w.Flush()

	logger.Debug("listed jobs", zap.Int("shown", shown), zap.Int("total", len(items)))
}

func setJobStatus(cmd *cobra.Command) {
	ctx := context.Background()
	logger := newLogger()
	config := mustConfig(logger)

	st, closeStore := openStore(ctx, logger, config)
	defer closeStore()

	company, _ := cmd.Flags().GetString("company")
	role, _ := cmd.Flags().GetString("role")
	link, _ := cmd.Flags().GetString("link")
	id := jobs.Identity{Company: company, Role: role, JobLink: link}

	if company == "" && role == "" && link == "" {
		picked, err := pickJob(ctx, st)
		if err != nil {
			logger.Fatal("selecting a job", zap.Error(err))
		}
		id = picked
	}

	raw, _ := cmd.Flags().GetString("status")
	if raw == "" {
		prompt := promptui.Select{Label: "New status", Items: jobs.StatusNames()}
		_, selected, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
		raw = selected
	}

	status, err := jobs.ParseStatus(raw)
	if err != nil {
		logger.Fatal("invalid status", zap.Error(err))
	}

	if err := st.UpdateStatus(ctx, id, status); err != nil {
		logger.Fatal("updating job status", zap.Error(err))
	}

	logger.Info("job status updated",
		zap.String("company", id.Company),
		zap.String("role", id.Role),
		zap.String("status", string(status)),
	)
}

func pickJob(ctx context.Context, st store.Store) (jobs.Identity, error) {
	items, err := st.ReadAll(ctx)
	if err != nil {
		return jobs.Identity{}, err
	}
	if len(items) == 0 {
		return jobs.Identity{}, fmt.Errorf("no stored jobs")
	}

	labels := make([]string, 0, len(items))
	for _, job := range items {
		labels = append(labels, fmt.Sprintf("[%s] %s at %s", job.Status, job.Role, job.Company))
	}

	prompt := promptui.Select{Label: "Job", Items: labels, Size: 15}
	i, _, err := prompt.Run()
	if err != nil {
		return jobs.Identity{}, err
	}
	return items[i].Identity(), nil
}
