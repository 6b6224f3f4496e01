package main

import "github.com/mutamba/erp-backend/cmd/erpctl/cmd"

func main() {
	cmd.Execute()
}
