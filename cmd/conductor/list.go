package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"conductor/internal/events"
	"conductor/internal/scheduler"
	"conductor/internal/task"
)

// newListCmd validates a task list and shows the order it would run in.
func newListCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Validate a task list and show its scheduling order",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			tasksPath, _ := cmd.Flags().GetString("tasks")
			inputs, err := loadTaskList(tasksPath)
			if err != nil {
				return err
			}

			registry := task.NewRegistry(task.RegistryConfig{
				AutonomyPolicy: cfg.AutonomyPolicy(),
				Bus:            events.NewBus(),
			})
			sched := scheduler.New(scheduler.Options{
				MaxConcurrent:   cfg.Scheduler.MaxConcurrent,
				Cooldown:        cfg.Scheduler.Cooldown,
				PriorityWeights: cfg.SchedulerPriorityWeights(),
				TypeWeights:     cfg.SchedulerTypeWeights(),
			}, nil, nil)

			for _, input := range inputs {
				t, err := registry.Create(input)
				if err != nil {
					return fmt.Errorf("task %q: %w", input.Title, err)
				}
				sched.Schedule(t)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ORDER\tSCORE\tROLE\tPRIORITY\tAUTONOMY\tTITLE")
			for i, st := range sched.Queued() {
				fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\n",
					i+1, st.Score, st.Task.Role, st.Task.Priority, st.Task.AutonomyLevel, st.Task.Title)
			}
			return w.Flush()
		},
	}
	cmd.Flags().String("tasks", "", "path to task list (YAML)")
	_ = cmd.MarkFlagRequired("tasks")
	return cmd
}
