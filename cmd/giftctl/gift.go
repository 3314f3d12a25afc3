package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var giftCmd = &cobra.Command{
	Use:   "gift",
	Short: "Create and delete gifts",
}

var giftNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a gift and print its editor token and link",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		gift, err := e.svc.CreateGift(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "id:    %s\n", gift.ID)
		fmt.Fprintf(out, "token: %s\n", gift.Token)
		fmt.Fprintf(out, "link:  %s\n", gift.Link)
		return nil
	},
}

var giftRmCmd = &cobra.Command{
	Use:   "rm [id]",
	Short: "Delete a gift's canvas and uploads",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.svc.DeleteGift(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Gift deleted: %s\n", args[0])
		return nil
	},
}

func init() {
	giftCmd.AddCommand(giftNewCmd, giftRmCmd)
	rootCmd.AddCommand(giftCmd)
}
