package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"riptide/concurrent"
	"riptide/engine"
)

var queueBenchCmd = &cobra.Command{
	Use:   "queuebench",
	Short: "Benchmark the multi-role handoff queue",
	RunE:  runQueueBench,
}

func init() {
	queueBenchCmd.Flags().Int("producers", 4, "number of producer tasks")
	queueBenchCmd.Flags().Int("consumers", 4, "number of consumer tasks")
	queueBenchCmd.Flags().Int("items", 100000, "items per producer")
	queueBenchCmd.Flags().Int64("capacity", 1024, "queue soft max size")
	queueBenchCmd.Flags().Int("workers", 0, "worker threads (0 = NumCPU)")
}

func runQueueBench(cmd *cobra.Command, args []string) error {
	configureColor(cmd)
	quiet, _ := cmd.Flags().GetBool("quiet")

	producers, _ := cmd.Flags().GetInt("producers")
	consumers, _ := cmd.Flags().GetInt("consumers")
	items, _ := cmd.Flags().GetInt("items")
	capacity, _ := cmd.Flags().GetInt64("capacity")
	workers, _ := cmd.Flags().GetInt("workers")

	proc, err := engine.NewTaskProcessor(engine.ProcessorConfig{
		Name:          "queuebench",
		WorkerThreads: workers,
	})
	if err != nil {
		return err
	}
	defer proc.Stop()

	queue := concurrent.NewMPMC[int](capacity)
	perConsumer := producers * items / consumers

	started := time.Now()
	var group errgroup.Group

	for i := 0; i < producers; i++ {
		producer := queue.GetProducer()
		task, err := engine.SpawnCritical(proc, func() error {
			defer producer.Close()
			for n := 0; n < items; n++ {
				if !producer.Push(n, engine.Deadline{}) {
					return fmt.Errorf("push %d failed", n)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		group.Go(func() error {
			if task.WaitBlocking() != engine.TaskCompleted {
				return fmt.Errorf("producer task %d did not complete", task.ID())
			}
			return nil
		})
	}

	for i := 0; i < consumers; i++ {
		consumer := queue.GetConsumer()
		task, err := engine.SpawnCritical(proc, func() error {
			defer consumer.Close()
			var value int
			for n := 0; n < perConsumer; n++ {
				if !consumer.Pop(&value, engine.Deadline{}) {
					return fmt.Errorf("pop %d failed", n)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		group.Go(func() error {
			if task.WaitBlocking() != engine.TaskCompleted {
				return fmt.Errorf("consumer task %d did not complete", task.ID())
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(started)

	if !quiet {
		total := producers * items
		header := color.New(color.Bold)
		header.Println("queuebench:")
		fmt.Printf("  %-20s %d\n", "items", total)
		fmt.Printf("  %-20s %s\n", "elapsed", elapsed)
		fmt.Printf("  %-20s %.0f items/s\n", "throughput", float64(total)/elapsed.Seconds())
		fmt.Printf("  %-20s %d\n", "final size", queue.GetSizeApproximate())
	}
	return nil
}
