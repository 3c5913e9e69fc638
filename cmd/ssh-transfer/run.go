package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	runJob      string
	runLogLevel string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one job now and exit",
	Long: `Execute a single transfer or cleanup job immediately, outside its schedule.
Use "plan" to list job names.

The run happens in this process, so a "serve" instance running the same job is
not aware of it: the two runs can overlap and hold separate sessions to the host.
Check /status on the serving instance before starting a manual run.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		inv, err := loadInventory(inventoryPath)
		if err != nil {
			return err
		}
		log, err := newLogger(inv, runLogLevel)
		if err != nil {
			return err
		}
		a, err := newApp(inv, log)
		if err != nil {
			return err
		}

		for _, j := range a.jobs {
			if j.Name == runJob {
				return a.runner.Execute(cmd.Context(), j)
			}
		}
		for _, j := range a.cleanups {
			if j.Name == runJob {
				return a.runner.ExecuteCleanup(cmd.Context(), j)
			}
		}
		return fmt.Errorf("no job named %q", runJob)
	},
}

func init() {
	runCmd.Flags().StringVarP(&runJob, "job", "j", "", "job name, e.g. warehouse-10.1.1.20")
	runCmd.Flags().StringVar(&runLogLevel, "log-level", "", "log level (overrides logging.level)")
	_ = runCmd.MarkFlagRequired("job")
}
