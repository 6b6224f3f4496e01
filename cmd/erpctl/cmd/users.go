package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/mutamba/erp-backend/internal/access"
	"github.com/mutamba/erp-backend/internal/callable"
	"github.com/mutamba/erp-backend/internal/dto"
)

var usersCmd = &cobra.Command{
	Use:     "users",
	Aliases: []string{"usuarios"},
	Short:   "Administer users (admin only)",
}

// requireAdmin gates admin commands on the resolved access context. The
// server checks again; this only avoids a pointless round trip.
func requireAdmin(ctx context.Context, cn *conn) error {
	sc, state, err := cn.accessContext(ctx)
	if err != nil {
		return err
	}
	defer sc.Close()
	if !sc.Can(access.ScreenUsuarios, access.ActionView) {
		return errors.New("Apenas administradores podem gerenciar usuários (perfil atual: " + state.Role.Label() + ")")
	}
	return nil
}

func callableMessage(err error) error {
	var ce *callable.Error
	if errors.As(err, &ce) && ce.Message != "" {
		return errors.New(ce.Message)
	}
	return err
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List directory entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 20*time.Second)
		defer cancel()

		cn, err := connect(ctx)
		if err != nil {
			return err
		}
		defer cn.persist()
		if err := requireAdmin(ctx, cn); err != nil {
			return err
		}

		users, err := cn.client.ListUsers(ctx)
		if err != nil {
			return err
		}

		data := pterm.TableData{{"UID", "NOME", "E-MAIL", "PERFIL", "CRIADO EM"}}
		for _, u := range users {
			data = append(data, []string{
				u.UID, u.Nome, u.Email,
				access.ParseRole(string(u.Role)).Label(),
				u.DataCriacao.Local().Format("02/01/2006 15:04"),
			})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

var (
	createEmail    string
	createNome     string
	createPassword string
	createRole     string
)

var usersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an identity and its directory entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		cn, err := connect(ctx)
		if err != nil {
			return err
		}
		defer cn.persist()
		if err := requireAdmin(ctx, cn); err != nil {
			return err
		}

		if createPassword == "" {
			password, err := pterm.DefaultInteractiveTextInput.WithMask("*").Show("Senha do novo usuário")
			if err != nil {
				return err
			}
			createPassword = password
		}

		res, err := cn.client.CreateUser(ctx, dto.CreateUserRequest{
			Email:    createEmail,
			Password: createPassword,
			Nome:     createNome,
			Role:     createRole,
		})
		if err != nil {
			return callableMessage(err)
		}
		pterm.Success.Println(res.Result)
		pterm.Info.Printfln("UID: %s", res.UID)
		return nil
	},
}

var usersSetRoleCmd = &cobra.Command{
	Use:   "set-role <uid> <admin|user>",
	Short: "Change another user's role",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 20*time.Second)
		defer cancel()

		cn, err := connect(ctx)
		if err != nil {
			return err
		}
		defer cn.persist()

		res, err := cn.client.SetUserRole(ctx, dto.SetUserRoleRequest{UID: args[0], Role: args[1]})
		if err != nil {
			return callableMessage(err)
		}
		pterm.Success.Printfln("%s: %s agora é %s", res.Result, res.UID, res.Role.Label())
		return nil
	},
}

var usersReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Create missing directory entries for existing identities",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
		defer cancel()

		cn, err := connect(ctx)
		if err != nil {
			return err
		}
		defer cn.persist()

		res, err := cn.client.ReconcileUsers(ctx)
		if err != nil {
			return callableMessage(err)
		}
		if len(res.Repaired) == 0 {
			pterm.Info.Println("Nenhuma entrada faltando.")
			return nil
		}
		pterm.Success.Printfln("%d entradas criadas", len(res.Repaired))
		for _, uid := range res.Repaired {
			pterm.Println("  " + uid)
		}
		return nil
	},
}

func init() {
	usersCreateCmd.Flags().StringVar(&createEmail, "email", "", "e-mail of the new user")
	usersCreateCmd.Flags().StringVar(&createNome, "nome", "", "display name of the new user")
	usersCreateCmd.Flags().StringVar(&createPassword, "password", "", "initial password (prompted when empty)")
	usersCreateCmd.Flags().StringVar(&createRole, "role", "", "admin or user (default user)")

	usersCmd.AddCommand(usersListCmd, usersCreateCmd, usersSetRoleCmd, usersReconcileCmd)
}
