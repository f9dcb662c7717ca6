package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"ytblog/blog"
	"ytblog/media"
	"ytblog/store"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/lithammer/shortuuid/v4"
	"github.com/spf13/cobra"
)

func openDB() (*store.DB, error) {
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage API users",
}

var userAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a user and print its API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		denied, _ := cmd.Flags().GetBool("no-extension")

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		token := shortuuid.New() + shortuuid.New()
		id, err := db.CreateUser(cmd.Context(), args[0], token, !denied)
		if err != nil {
			return err
		}
		fmt.Printf("User %d created.\nAPI key: %s\n", id, token)
		return nil
	},
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List categories as a tree",
	RunE: func(cmd *cobra.Command, args []string) error {
		tree, err := loadCategoryTree(cmd)
		if err != nil {
			return err
		}
		if len(tree) == 0 {
			fmt.Println("No categories yet.")
			return nil
		}
		printTree(tree, 0)
		return nil
	},
}

// loadCategoryTree reads the tree from the database, or from the blog API
// with --remote.
func loadCategoryTree(cmd *cobra.Command) ([]*blog.CategoryNode, error) {
	if remote, _ := cmd.Flags().GetBool("remote"); remote {
		api, err := remoteClient()
		if err != nil {
			return nil, err
		}
		return api.Categories(cmd.Context())
	}

	db, err := openDB()
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return blog.NewService(db, nil, nil, cfg.BaseURL, logger).CategoryTree(cmd.Context())
}

var categoriesAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parent, _ := cmd.Flags().GetInt64("parent")
		var parentID *int64
		if parent != 0 {
			parentID = &parent
		}

		if remote, _ := cmd.Flags().GetBool("remote"); remote {
			api, err := remoteClient()
			if err != nil {
				return err
			}
			c, err := api.CreateCategory(cmd.Context(), args[0], parentID)
			if err != nil {
				return err
			}
			fmt.Printf("Category %d created (%s).\n", c.ID, c.Slug)
			return nil
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		in := blog.NewCategory{Title: args[0], ParentID: parentID}
		svc := blog.NewService(db, nil, nil, cfg.BaseURL, logger)
		c, err := svc.CreateCategory(cmd.Context(), nil, in)
		if err != nil {
			return err
		}
		fmt.Printf("Category %d created (%s).\n", c.ID, c.Slug)
		return nil
	},
}

func printTree(nodes []*blog.CategoryNode, depth int) {
	for _, n := range nodes {
		fmt.Printf("%s%d  %s\n", strings.Repeat("  ", depth), n.ID, n.Title)
		printTree(n.Children, depth+1)
	}
}

var showCmd = &cobra.Command{
	Use:   "show <article-id>",
	Short: "Print an article as markdown with its processing state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid article id %q", args[0])
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		return showArticle(cmd.Context(), os.Stdout, db, media.NewDisk(cfg.StorageDir, cfg.PublicURL), id)
	},
}

func showArticle(ctx context.Context, w io.Writer, db *store.DB, disk *media.Disk, id int64) error {
	a, err := db.GetArticle(ctx, id)
	if err != nil {
		return fmt.Errorf("loading article %d: %w", id, err)
	}

	body, err := md.NewConverter("", true, nil).ConvertString(a.Content)
	if err != nil {
		return fmt.Errorf("converting content: %w", err)
	}

	st := blog.Evaluate(a)
	fmt.Fprintf(w, "# %s\n\n", a.Title)
	fmt.Fprintf(w, "slug: %s\nvideo: %s\nstatus: %s (%s)\n", a.Slug, a.VideoID, st.Status, a.IngestStatus)
	if len(a.Tags) > 0 {
		fmt.Fprintf(w, "tags: %s\n", strings.Join(a.Tags, ", "))
	}
	for _, att := range a.Attachments {
		if !strings.Contains(att, "://") && !disk.Exists(att) {
			fmt.Fprintf(w, "attachment: %s (missing on disk)\n", att)
			continue
		}
		fmt.Fprintf(w, "attachment: %s\n", att)
	}
	fmt.Fprintf(w, "\n%s\n", body)
	return nil
}

func init() {
	userAddCmd.Flags().Bool("no-extension", false, "Create the user without permission to submit videos")
	userCmd.AddCommand(userAddCmd)

	categoriesCmd.PersistentFlags().Bool("remote", false, "Use the blog API with the saved login instead of the local database")
	categoriesAddCmd.Flags().Int64("parent", 0, "Parent category id")
	categoriesCmd.AddCommand(categoriesAddCmd)
}
