package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	materialsQuery    string
	materialsLowStock bool
	productsQuery     string
	productsInactive  bool
)

var materialsCmd = &cobra.Command{
	Use:     "materials",
	Aliases: []string{"materias-primas"},
	Short:   "Raw materials",
}

var materialsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List raw materials",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 20*time.Second)
		defer cancel()

		cn, err := connect(ctx)
		if err != nil {
			return err
		}
		defer cn.persist()

		resp, err := cn.client.ListMaterials(ctx, materialsQuery, materialsLowStock)
		if err != nil {
			return err
		}

		data := pterm.TableData{{"NOME", "QTD", "UNID", "MÍNIMO", "CUSTO", ""}}
		for _, m := range resp.Items {
			flag := ""
			if m.AbaixoDoMinimo() {
				flag = pterm.Red("abaixo do mínimo")
			}
			data = append(data, []string{
				m.Nome,
				strconv.FormatFloat(m.Quantidade, 'f', -1, 64),
				m.Unidade,
				strconv.FormatFloat(m.EstoqueMinimo, 'f', -1, 64),
				fmt.Sprintf("R$ %.2f", m.CustoUnitario),
				flag,
			})
		}
		if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
			return err
		}
		pterm.Info.Printfln("%d de %d", len(resp.Items), resp.Total)
		return nil
	},
}

var productsCmd = &cobra.Command{
	Use:     "products",
	Aliases: []string{"produtos"},
	Short:   "Finished products",
}

var productsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List products",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 20*time.Second)
		defer cancel()

		cn, err := connect(ctx)
		if err != nil {
			return err
		}
		defer cn.persist()

		resp, err := cn.client.ListProducts(ctx, productsQuery, productsInactive)
		if err != nil {
			return err
		}

		data := pterm.TableData{{"SKU", "NOME", "PREÇO", "ESTOQUE", "ATIVO"}}
		for _, p := range resp.Items {
			ativo := "sim"
			if !p.Ativo {
				ativo = "não"
			}
			data = append(data, []string{
				p.SKU, p.Nome, fmt.Sprintf("R$ %.2f", p.Preco), strconv.Itoa(p.Estoque), ativo,
			})
		}
		if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
			return err
		}
		pterm.Info.Printfln("%d de %d", len(resp.Items), resp.Total)
		return nil
	},
}

func init() {
	materialsListCmd.Flags().StringVarP(&materialsQuery, "query", "q", "", "filter by name")
	materialsListCmd.Flags().BoolVar(&materialsLowStock, "low", false, "only items below their minimum stock")
	materialsCmd.AddCommand(materialsListCmd)

	productsListCmd.Flags().StringVarP(&productsQuery, "query", "q", "", "filter by name or SKU")
	productsListCmd.Flags().BoolVar(&productsInactive, "inactive", false, "include inactive products")
	productsCmd.AddCommand(productsListCmd)
}
