package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/mutamba/erp-backend/cmd/erpctl/internal/credstore"
	"github.com/mutamba/erp-backend/internal/access"
	"github.com/mutamba/erp-backend/internal/client"
	"github.com/mutamba/erp-backend/internal/config"
	"github.com/mutamba/erp-backend/internal/logging"
	"github.com/mutamba/erp-backend/internal/session"
)

var (
	serverURL       string
	apiKey          string
	superAdminEmail string
	credentialsDir  string
	logLevel        string
)

var rootCmd = &cobra.Command{
	Use:   "erpctl",
	Short: "Mutamba ERP command-line client",
	Long: `erpctl signs in to the Mutamba ERP server, shows the access context of the
signed-in user and runs the administrative user operations.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(logLevel)
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("ERP_SERVER", "http://localhost:8080"), "ERP server URL")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("ERP_API_KEY"), "project API key (ERP_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&superAdminEmail, "super-admin-email", os.Getenv("SUPER_ADMIN_EMAIL"), "super-admin email (SUPER_ADMIN_EMAIL)")
	rootCmd.PersistentFlags().StringVar(&credentialsDir, "credentials-dir", "", "where the session is stored (default ~/.mutamba)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd, usersCmd, materialsCmd, productsCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// conn is a resumed server session. Close persists the rotated refresh token.
type conn struct {
	client *client.Client
	store  *credstore.FileStore
	creds  *credstore.Credentials
}

func connect(ctx context.Context) (*conn, error) {
	if apiKey == "" {
		return nil, errors.New("ERP_API_KEY is not set (use --api-key)")
	}
	store, err := credstore.NewFileStore(credentialsDir)
	if err != nil {
		return nil, err
	}
	creds, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("%w: run erpctl login", err)
	}

	server := serverURL
	if !rootCmd.PersistentFlags().Changed("server") && creds.Server != "" {
		server = creds.Server
	}
	c := client.New(server, apiKey)
	if _, err := c.Resume(ctx, creds.RefreshToken); err != nil {
		return nil, fmt.Errorf("session expired, run erpctl login: %w", err)
	}

	cn := &conn{client: c, store: store, creds: creds}
	if err := cn.persist(); err != nil {
		return nil, err
	}
	return cn, nil
}

func (cn *conn) persist() error {
	rt := cn.client.RefreshToken()
	if rt == "" {
		return cn.store.Delete()
	}
	cn.creds.RefreshToken = rt
	return cn.store.Save(cn.creds)
}

// accessContext starts a session context on the connection and waits until
// the role of the signed-in identity is resolved.
func (cn *conn) accessContext(ctx context.Context) (*session.Context, session.State, error) {
	sc := session.New(cn.client, access.NewResolver(cn.client, config.NormalizeEmail(superAdminEmail)))
	sc.Start()

	waitCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	s, err := sc.WaitFor(waitCtx, func(s session.State) bool { return !s.Loading && s.Identity != nil })
	if err != nil {
		sc.Close()
		return nil, s, fmt.Errorf("resolve access context: %w", err)
	}
	return sc, s, nil
}
