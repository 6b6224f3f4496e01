package cmd

import (
	"context"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in identity, its role and the screens it can open",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 20*time.Second)
		defer cancel()

		cn, err := connect(ctx)
		if err != nil {
			return err
		}
		defer cn.persist()

		sc, state, err := cn.accessContext(ctx)
		if err != nil {
			return err
		}
		defer sc.Close()

		pterm.DefaultSection.Println("Sessão")
		pterm.Info.Printfln("UID:    %s", state.Identity.UID)
		pterm.Info.Printfln("E-mail: %s", state.Identity.Email)
		if state.Identity.DisplayName != "" {
			pterm.Info.Printfln("Nome:   %s", state.Identity.DisplayName)
		}
		pterm.Info.Printfln("Perfil: %s", state.Role.Label())
		if state.Err != nil {
			pterm.Warning.Printfln("Não foi possível ler o perfil no diretório; acesso limitado a usuário (%v)", state.Err)
		}

		screens := sc.Screens()
		items := make([]pterm.BulletListItem, 0, len(screens))
		for _, s := range screens {
			items = append(items, pterm.BulletListItem{Level: 0, Text: s.Label})
		}
		pterm.DefaultSection.Println("Telas")
		return pterm.DefaultBulletList.WithItems(items).Render()
	},
}
