package main

import (
	"fmt"

	"github.com/BTreeMap/NutriPipe/internal/api"
	"github.com/spf13/cobra"
)

var usersCount bool

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List registered identities",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := api.OpenStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		ids, err := st.ListIdentities(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if !usersCount {
			for _, id := range ids {
				fmt.Fprintln(out, id)
			}
		}
		fmt.Fprintf(out, "%d registered users\n", len(ids))
		return nil
	},
}

func init() {
	usersCmd.Flags().BoolVar(&usersCount, "count", false, "print only the number of users")
	rootCmd.AddCommand(usersCmd)
}
