package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"ytblog/blog"
	"ytblog/client"

	"github.com/spf13/cobra"
)

func openClientStore() *client.TaskStore {
	path := clientPath
	if path == "" {
		path = client.DefaultPath()
	}
	return client.OpenTaskStore(path, logger)
}

func newAPIClient(settings client.Settings) *client.Client {
	return client.NewClient(settings, client.WithHTTPClient(&http.Client{Timeout: clientTimeout}))
}

// remoteClient connects with the settings saved by login.
func remoteClient() (*client.Client, error) {
	s := openClientStore()
	defer s.Close()
	settings := s.Settings()
	if !settings.Complete() {
		return nil, fmt.Errorf("%w, run login first", client.ErrSettingsMissing)
	}
	return newAPIClient(settings), nil
}

var loginCmd = &cobra.Command{
	Use:   "login <site-url> <api-key>",
	Short: "Save the blog address and API key for the client commands",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := openClientStore()
		defer s.Close()

		settings := client.Settings{SiteURL: strings.TrimSuffix(args[0], "/"), APIKey: args[1]}
		if _, err := newAPIClient(settings).Categories(cmd.Context()); err != nil {
			return fmt.Errorf("checking connection: %w", err)
		}
		s.SaveSettings(settings)
		fmt.Println("Connection saved.")
		return nil
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit <video-id> <title>",
	Short: "Submit a video and follow it until the article is ready",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		categories, _ := flags.GetInt64Slice("category")
		note, _ := flags.GetString("note")
		description, _ := flags.GetString("description")
		local, _ := flags.GetBool("download")

		s := openClientStore()
		defer s.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		sub := &client.Submitter{
			Store:   s,
			Connect: func(st client.Settings) client.API { return newAPIClient(st) },
			Logger:  logger,
		}
		task, err := sub.Submit(ctx, blog.Submission{
			Title:            args[1],
			VideoID:          args[0],
			Description:      description,
			Note:             note,
			CategoryIDs:      categories,
			AddToAttachments: local,
		})
		fmt.Printf("%s: %s %s\n", args[0], task.Status, task.Message)
		return err
	},
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Show the client task queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		watch, _ := cmd.Flags().GetBool("watch")

		s := openClientStore()
		defer s.Close()

		printQueue(s.Snapshot())
		if !watch {
			return nil
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		unsubscribe := s.Subscribe(func(q map[string]client.Task) {
			fmt.Println("---")
			printQueue(q)
		})
		defer unsubscribe()
		if err := s.Watch(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return nil
	},
}

func printQueue(q map[string]client.Task) {
	if len(q) == 0 {
		fmt.Println("No tasks.")
		return
	}
	ids := make([]string, 0, len(q))
	for id := range q {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return q[ids[i]].Timestamp > q[ids[j]].Timestamp })
	for _, id := range ids {
		t := q[id]
		age := time.Since(time.UnixMilli(t.Timestamp)).Truncate(time.Second)
		fmt.Printf("%-12s %-8s %-40s %s (%s ago)\n", id, t.Status, t.Title, t.Message, age)
	}
}

func init() {
	submitCmd.Flags().Int64Slice("category", nil, "Category id, repeatable")
	submitCmd.Flags().String("note", "", "Personal note added under the video")
	submitCmd.Flags().String("description", "", "Video description; #hashtags become tags")
	submitCmd.Flags().Bool("download", false, "Store a local copy of the video")

	queueCmd.Flags().Bool("watch", false, "Keep printing the queue as it changes")
}
