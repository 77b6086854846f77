package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dtroode/credsync/internal/importer"
	"github.com/dtroode/credsync/internal/keyring"
	"github.com/dtroode/credsync/internal/model"
	"github.com/dtroode/credsync/internal/ui"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push pending edits and pull remote changes once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := openVault(cmd.Context())
			if err != nil {
				return err
			}
			defer v.Close()

			res, err := v.SyncNow(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res.Skipped {
				fmt.Fprintln(out, ui.Success.Sprint("up to date"), ui.Muted.Sprintf("gencount %d", res.GenCount))
				return nil
			}
			fmt.Fprintf(out, "%s pulled %d, pushed %d, conflicts %d %s\n",
				ui.Success.Sprint("synced"), res.Pulled, res.Pushed, res.Conflicts, ui.Muted.Sprintf("gencount %d", res.GenCount))
			for _, e := range res.Errors {
				fmt.Fprintln(out, ui.Warning.Sprint("warning:"), e)
			}
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored credentials",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := openVault(cmd.Context())
			if err != nil {
				return err
			}
			defer v.Close()

			creds, err := v.List()
			if err != nil {
				return err
			}
			printCredentials(cmd.OutOrStdout(), creds)
			return nil
		},
	}
}

func newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Find credentials by server or account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := openVault(cmd.Context())
			if err != nil {
				return err
			}
			defer v.Close()

			creds, err := v.Search(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printCredentials(cmd.OutOrStdout(), creds)
			return nil
		},
	}
}

func newShowCmd() *cobra.Command {
	var reveal bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid id %q: %w", args[0], err)
			}
			v, err := openVault(cmd.Context())
			if err != nil {
				return err
			}
			defer v.Close()

			cred, err := v.Get(id)
			if err != nil {
				return err
			}
			printCredential(cmd.OutOrStdout(), cred, reveal)
			return nil
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "print the password in clear text")
	return cmd
}

func newAddCmd() *cobra.Command {
	var rec model.ImportRecord
	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Store a new credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec.URL = args[0]
			if rec.Password == "" {
				pw, err := keyring.ReadPassword("Password for " + rec.URL + ": ")
				if err != nil {
					return err
				}
				rec.Password = string(pw)
			}

			v, err := openVault(cmd.Context())
			if err != nil {
				return err
			}
			defer v.Close()

			cred, err := v.Import(cmd.Context(), rec)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.Success.Sprint("added"), cred.ID, ui.Highlight.Sprint(cred.Server))
			return nil
		},
	}
	cmd.Flags().StringVarP(&rec.Username, "username", "u", "", "account name")
	cmd.Flags().StringVarP(&rec.Password, "password", "p", "", "password, prompted when empty")
	cmd.Flags().StringVar(&rec.Notes, "notes", "", "free-form notes")
	return cmd
}

func newEditCmd() *cobra.Command {
	var username, password, notes string
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change the account, password or notes of a credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid id %q: %w", args[0], err)
			}
			v, err := openVault(cmd.Context())
			if err != nil {
				return err
			}
			defer v.Close()

			cred, err := v.Get(id)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("username") {
				cred.Account = username
				cred.Secret.Username = username
			}
			if flags.Changed("password") {
				cred.Secret.Password = password
			}
			if flags.Changed("notes") {
				cred.Secret.Notes = notes
			}

			cred, err = v.Update(cmd.Context(), cred)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.Success.Sprint("updated"), cred.ID, ui.Muted.Sprintf("gencount %d", cred.GenCount))
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "new account name")
	cmd.Flags().StringVarP(&password, "password", "p", "", "new password")
	cmd.Flags().StringVar(&notes, "notes", "", "new notes")
	return cmd
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a credential on every device",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid id %q: %w", args[0], err)
			}
			v, err := openVault(cmd.Context())
			if err != nil {
				return err
			}
			defer v.Close()

			if err := v.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.Success.Sprint("deleted"), id)
			return nil
		},
	}
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import a CSV export from a browser or password manager",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			records, err := importer.ParseCSV(f)
			if err != nil {
				return err
			}

			v, err := openVault(cmd.Context())
			if err != nil {
				return err
			}
			defer v.Close()

			out := cmd.OutOrStdout()
			imported := 0
			for i, rec := range records {
				if _, err := v.Import(cmd.Context(), rec); err != nil {
					fmt.Fprintf(out, "%s row %d %s: %v\n", ui.Warning.Sprint("skipped"), i+1, ui.Highlight.Sprint(rec.URL), err)
					continue
				}
				imported++
			}
			fmt.Fprintf(out, "%s %d of %d records\n", ui.Success.Sprint("imported"), imported, len(records))
			return nil
		},
	}
}

func newForgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget",
		Short: "Remove the stored passphrase and account password from the OS keyring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := keyring.New(cfg.Agent.Login, keyring.ReadPassword, false).Forget(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.Success.Sprint("forgotten"), ui.Highlight.Sprint(cfg.Agent.Login))
			return nil
		},
	}
}

func printCredentials(w io.Writer, creds []model.Credential) {
	if len(creds) == 0 {
		fmt.Fprintln(w, ui.Muted.Sprint("no credentials"))
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSERVER\tACCOUNT\tPATH")
	for _, c := range creds {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.ID, c.Server, c.Account, c.Path)
	}
	_ = tw.Flush()
}

func printCredential(w io.Writer, c model.Credential, reveal bool) {
	password := ui.Mask(c.Secret.Password)
	if reveal {
		password = c.Secret.Password
	}
	fmt.Fprintf(w, "id:       %s\n", c.ID)
	fmt.Fprintf(w, "url:      %s\n", c.Secret.URL)
	fmt.Fprintf(w, "server:   %s\n", ui.Highlight.Sprint(c.Server))
	fmt.Fprintf(w, "account:  %s\n", c.Account)
	fmt.Fprintf(w, "password: %s\n", password)
	if c.Secret.Notes != "" {
		fmt.Fprintf(w, "notes:    %s\n", c.Secret.Notes)
	}
	fmt.Fprintf(w, "gencount: %d\n", c.GenCount)
}
