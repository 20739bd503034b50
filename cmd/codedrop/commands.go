package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"codedrop/internal/client"
	"codedrop/internal/models"
)

type globalOptions struct {
	server    string
	tokenFile string
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "codedrop",
		Short:         "Share files and text through a codedrop server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.server, "server", "s", envOr("CODEDROP_SERVER", "http://localhost:8080"), "server base URL")
	root.PersistentFlags().StringVar(&opts.tokenFile, "token-file", defaultTokenFile(), "where the session token is kept")

	root.AddCommand(
		newSendCommand(opts),
		newGetCommand(opts),
		newRegisterCommand(opts),
		newLoginCommand(opts),
		newLogoutCommand(opts),
		newListCommand(opts),
		newPutCommand(opts),
		newRemoveCommand(opts),
		newStatsCommand(opts),
	)
	return root
}

func (o *globalOptions) client() *client.Client {
	token, err := os.ReadFile(o.tokenFile)
	if err != nil {
		return client.New(o.server)
	}
	return client.New(o.server, client.WithToken(strings.TrimSpace(string(token))))
}

func (o *globalOptions) saveToken(token string) error {
	if err := os.MkdirAll(filepath.Dir(o.tokenFile), 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	return os.WriteFile(o.tokenFile, []byte(token), 0o600)
}

// openFile returns nil when path is empty. The caller closes the file.
func openFile(path string) (*client.File, io.Closer, error) {
	if path == "" {
		return nil, nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return &client.File{Name: filepath.Base(path), Reader: f}, f, nil
}

func newSendCommand(opts *globalOptions) *cobra.Command {
	var text string
	cmd := &cobra.Command{
		Use:   "send [file]",
		Short: "Share a file and/or text anonymously and print its code",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, closer, err := openFile(lo.FirstOrEmpty(args))
			if err != nil {
				return err
			}
			if closer != nil {
				defer closer.Close()
			}
			if file == nil && strings.TrimSpace(text) == "" {
				return errors.New("a file or --text is required")
			}

			c := opts.client()
			code, err := c.NewCode(cmd.Context())
			if err != nil {
				return err
			}
			code, err = c.SendAnonymous(cmd.Context(), code, text, file)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), code)
			return nil
		},
	}
	cmd.Flags().StringVarP(&text, "text", "t", "", "text to share")
	return cmd
}

func newGetCommand(opts *globalOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "get CODE",
		Short: "Fetch what was shared under a code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client()
			upload, err := c.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if upload.TextContent != nil {
				fmt.Fprintln(out, *upload.TextContent)
			}
			if upload.URL == nil {
				return nil
			}

			target := output
			if target == "" && upload.Filename != nil {
				target = filepath.Base(*upload.Filename)
			}
			if target == "" {
				fmt.Fprintln(out, *upload.URL)
				return nil
			}

			f, err := os.Create(target)
			if err != nil {
				return err
			}
			defer f.Close()

			n, err := c.Fetch(cmd.Context(), *upload.URL, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "saved %s (%s)\n", target, humanize.IBytes(uint64(n)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write the attachment to")
	return cmd
}

func newRegisterCommand(opts *globalOptions) *cobra.Command {
	var email, username, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := client.New(opts.server).Register(cmd.Context(), email, username, password)
			if err != nil {
				return err
			}
			if err := opts.saveToken(session.Token); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered as %s\n", session.User.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", os.Getenv("CODEDROP_PASSWORD"), "password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newLoginCommand(opts *globalOptions) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and keep the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := client.New(opts.server).Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			if err := opts.saveToken(session.Token); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s\n", session.User.Username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", os.Getenv("CODEDROP_PASSWORD"), "password")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newLogoutCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.client().Logout(cmd.Context()); err != nil {
				return err
			}
			if err := os.Remove(opts.tokenFile); err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
}

func newListCommand(opts *globalOptions) *cobra.Command {
	var all bool
	var pages int
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List your uploads, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			feed := client.NewFeed(opts.client())
			if err := feed.Refresh(cmd.Context()); err != nil {
				return err
			}
			for loaded := 1; feed.HasMore() && (all || loaded < pages); loaded++ {
				if err := feed.LoadMore(cmd.Context()); err != nil {
					return err
				}
			}

			printUploads(cmd.OutOrStdout(), feed.Items())
			if feed.HasMore() {
				fmt.Fprintln(cmd.OutOrStdout(), "more uploads available, use --pages or --all")
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "load every page")
	cmd.Flags().IntVar(&pages, "pages", 1, "number of pages to load")
	return cmd
}

func printUploads(w io.Writer, uploads []*models.Upload) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tSIZE\tCREATED\tCONTENT")
	for _, u := range uploads {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			u.ID,
			u.Type,
			humanize.IBytes(uint64(u.FileSize)),
			humanize.Time(u.CreatedAt),
			describe(u),
		)
	}
	_ = tw.Flush()
}

func describe(u *models.Upload) string {
	parts := lo.Compact([]string{
		lo.FromPtr(u.Filename),
		lo.Ellipsis(strings.ReplaceAll(lo.FromPtr(u.TextContent), "\n", " "), 40),
		lo.FromPtr(u.URL),
	})
	return strings.Join(parts, "  ")
}

func newPutCommand(opts *globalOptions) *cobra.Command {
	var text string
	cmd := &cobra.Command{
		Use:   "put [file]",
		Short: "Upload a file and/or text to your account",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, closer, err := openFile(lo.FirstOrEmpty(args))
			if err != nil {
				return err
			}
			if closer != nil {
				defer closer.Close()
			}
			if file == nil && strings.TrimSpace(text) == "" {
				return errors.New("a file or --text is required")
			}

			upload, err := opts.client().Upload(cmd.Context(), text, file)
			if err != nil {
				return err
			}
			printUploads(cmd.OutOrStdout(), []*models.Upload{upload})
			return nil
		},
	}
	cmd.Flags().StringVarP(&text, "text", "t", "", "text to store")
	return cmd
}

func newRemoveCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rm ID...",
		Short: "Delete uploads by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]uuid.UUID, 0, len(args))
			for _, arg := range args {
				id, err := uuid.Parse(arg)
				if err != nil {
					return fmt.Errorf("invalid upload id %q", arg)
				}
				ids = append(ids, id)
			}

			feed := client.NewFeed(opts.client())
			for _, id := range ids {
				if err := feed.Remove(cmd.Context(), id); err != nil {
					return fmt.Errorf("deleting %s: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			}
			return nil
		},
	}
}

func newStatsCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show upload counts and storage usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := opts.client().Stats(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "uploads  %d (%d files, %d images, %d texts)\n",
				stats.TotalUploads, stats.TotalFiles, stats.TotalImages, stats.TotalTexts)
			fmt.Fprintf(out, "storage  %s of %s (%.1f%%)\n",
				stats.StorageUsedHuman, stats.StorageQuotaHuman, stats.QuotaPercent)
			return nil
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".codedrop-token"
	}
	return filepath.Join(dir, "codedrop", "token")
}
