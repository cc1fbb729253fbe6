package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/frahmantamala/leave-management/internal/auth"
	"github.com/frahmantamala/leave-management/internal/core/database"
	employeePostgres "github.com/frahmantamala/leave-management/internal/employee/postgres"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token <employee-id>",
	Short: "Mint an access token for an employee",
	Long:  `Mint a development access token for an existing employee without going through login.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid employee id %q", args[0])
		}

		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}

		db, err := database.Open(database.Options{Source: cfg.Database.Source})
		if err != nil {
			return err
		}
		defer func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}()
		sqlDB, err := database.SQLX(db)
		if err != nil {
			return err
		}

		e, err := employeePostgres.NewEmployeeRepository(db, sqlDB).FindByID(context.Background(), id)
		if err != nil {
			return err
		}
		if e == nil {
			return fmt.Errorf("employee %d not found", id)
		}

		tokens := auth.NewJWTTokenGenerator(
			cfg.Security.AccessTokenSecret,
			cfg.Security.RefreshTokenSecret,
			cfg.Security.AccessTokenDuration,
			cfg.Security.RefreshTokenDuration,
		)
		token, err := tokens.GenerateAccessToken(e)
		if err != nil {
			return err
		}

		fmt.Printf("# %s <%s> role=%s, valid for %s\n", e.FullName(), e.Email, e.Role, tokens.AccessTokenTTL)
		fmt.Println(token)
		return nil
	},
}
