package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/mutamba/erp-backend/cmd/erpctl/internal/credstore"
	"github.com/mutamba/erp-backend/internal/client"
)

var (
	loginEmail    string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if loginEmail == "" {
			email, err := pterm.DefaultInteractiveTextInput.Show("E-mail")
			if err != nil {
				return err
			}
			loginEmail = email
		}
		if loginPassword == "" {
			password, err := pterm.DefaultInteractiveTextInput.WithMask("*").Show("Senha")
			if err != nil {
				return err
			}
			loginPassword = password
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()

		c := client.New(serverURL, apiKey)
		id, err := c.SignIn(ctx, loginEmail, loginPassword)
		if err != nil {
			var apiErr *client.APIError
			if errors.As(err, &apiErr) {
				return errors.New(apiErr.Message)
			}
			return err
		}

		store, err := credstore.NewFileStore(credentialsDir)
		if err != nil {
			return err
		}
		if err := store.Save(&credstore.Credentials{
			Server:       serverURL,
			Email:        id.Email,
			RefreshToken: c.RefreshToken(),
		}); err != nil {
			return err
		}

		pterm.Success.Printfln("Conectado como %s", id.Email)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke and forget the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()

		cn, err := connect(ctx)
		if errors.Is(err, credstore.ErrNotLoggedIn) {
			pterm.Info.Println("Nenhuma sessão ativa.")
			return nil
		}
		if err != nil {
			return err
		}

		if err := cn.client.SignOut(ctx); err != nil {
			pterm.Warning.Printfln("Falha ao revogar a sessão no servidor: %v", err)
		}
		if err := cn.store.Delete(); err != nil {
			return err
		}
		pterm.Success.Println("Sessão encerrada.")
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account e-mail")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "account password (prompted when empty)")
}
