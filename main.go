package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"etalase/internal/app"
	"etalase/internal/config"
	"etalase/internal/models"
	"etalase/internal/services"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "etalase",
		Short:        "Storefront catalog with a password protected admin panel",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newAdminCmd(), newProductsCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a, err := app.New(cfg)
			if err != nil {
				return err
			}

			// Graceful shutdown handling
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

			serveErr := make(chan error, 1)
			go func() {
				serveErr <- a.Listen()
			}()

			select {
			case <-quit:
				log.Println("Shutting down server...")
			case err := <-serveErr:
				log.Printf("Server failed: %v", err)
				if shutdownErr := a.Shutdown(); shutdownErr != nil {
					log.Printf("Error during shutdown: %v", shutdownErr)
				}
				return err
			}

			if err := a.Shutdown(); err != nil {
				log.Printf("Error during shutdown: %v", err)
				return err
			}
			log.Println("Server gracefully stopped")
			return nil
		},
	}
}

func newAdminCmd() *cobra.Command {
	admin := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin accounts",
	}

	var email, password string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			repos, err := app.OpenRepositories(cfg)
			if err != nil {
				return err
			}
			defer repos.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			auth := services.NewAuthService(repos.Users, cfg.JWTSecret, cfg.SessionTTL)
			user, err := auth.CreateAdmin(ctx, email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Admin %s created (ID: %s)\n", user.Email, user.ID)
			return nil
		},
	}
	create.Flags().StringVar(&email, "email", "", "admin email address")
	create.Flags().StringVar(&password, "password", "", "admin password")
	_ = create.MarkFlagRequired("email")
	_ = create.MarkFlagRequired("password")

	admin.AddCommand(create)
	return admin
}

func newProductsCmd() *cobra.Command {
	products := &cobra.Command{
		Use:   "products",
		Short: "Inspect the product catalog",
	}

	var query string
	list := &cobra.Command{
		Use:   "list",
		Short: "List products, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			repos, err := app.OpenRepositories(cfg)
			if err != nil {
				return err
			}
			defer repos.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			all, err := repos.Products.List(ctx)
			if err != nil {
				return fmt.Errorf("%w: %w", models.ErrFetchFailure, err)
			}
			renderProducts(cmd.OutOrStdout(), services.Filter(all, query), cfg.CurrencySymbol)
			return nil
		},
	}
	list.Flags().StringVarP(&query, "query", "q", "", "case-insensitive name filter")

	products.AddCommand(list)
	return products
}

func renderProducts(w io.Writer, products []models.Product, currency string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"ID", "Name", "Price", "In Stock", "Created"})
	for _, p := range products {
		stock := "yes"
		if !p.InStock {
			stock = "no"
		}
		t.AppendRow(table.Row{p.ID, p.Name, currency + p.Price.StringFixed(2), stock, p.CreatedAt.Format(time.RFC3339)})
	}
	t.AppendFooter(table.Row{"", "Total", len(products)})
	t.Render()
}
