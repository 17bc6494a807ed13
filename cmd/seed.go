package cmd

import (
	"context"
	"errors"
	"fmt"

	"blog-cms/config"
	"blog-cms/logging"
	"blog-cms/models"
	"blog-cms/repositories"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var defaultCategories = []string{"General", "Engineering", "Announcements"}

type ownerAccount struct {
	Name     string
	Email    string
	Password string
}

var seedOwner ownerAccount

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert default categories and an owner account",
	Long: `Insert the default categories when none exist, and an owner account
when --owner-email is given and no user has that address yet. Running it
twice is harmless.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := config.InitDB(cfg.DB, cfg.Debug)
		if err != nil {
			return err
		}
		return seed(cmd.Context(), repositories.NewStore(db), seedOwner)
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().StringVar(&seedOwner.Name, "owner-name", "Owner", "display name of the owner account")
	seedCmd.Flags().StringVar(&seedOwner.Email, "owner-email", "", "email of the owner account (skipped when empty)")
	seedCmd.Flags().StringVar(&seedOwner.Password, "owner-password", "", "password of the owner account")
}

func seed(ctx context.Context, store repositories.Store, owner ownerAccount) error {
	return store.Transaction(ctx, func(tx repositories.Store) error {
		count, err := tx.Categories().Count(ctx)
		if err != nil {
			return err
		}
		if count == 0 {
			for _, name := range defaultCategories {
				if err := tx.Categories().Create(ctx, &models.Category{Name: name, IsActive: true}); err != nil {
					return fmt.Errorf("create category %q: %w", name, err)
				}
			}
			logging.Info().Int("count", len(defaultCategories)).Msg("seeded categories")
		}

		if owner.Email == "" {
			return nil
		}
		_, err = tx.Users().GetByEmail(ctx, owner.Email)
		if err == nil {
			logging.Info().Str("email", owner.Email).Msg("owner already exists")
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if len(owner.Password) < 6 {
			return errors.New("--owner-password must be at least 6 characters")
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(owner.Password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		user := &models.User{Name: owner.Name, Email: owner.Email, Password: string(hashed), Role: models.RoleOwner}
		if err := tx.Users().Create(ctx, user); err != nil {
			return err
		}
		logging.Info().Str("email", owner.Email).Msg("seeded owner account")
		return nil
	})
}
