package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	invoicedm "github.com/frahmantamala/invoice-payments/internal/core/datamodel/invoice"
	invoicePostgres "github.com/frahmantamala/invoice-payments/internal/invoice/postgres"
)

const sampleCustomerID int64 = 1001

var seedPassword string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed permissions, a staff user, a customer user and an unpaid invoice for local testing.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer sqlDB.Close()

		db, err := initGorm(sqlDB, cfg.Env)
		if err != nil {
			log.Fatalf("failed to init gorm: %v", err)
		}

		cost := cfg.Security.BCryptCost
		if cost == 0 {
			cost = bcrypt.DefaultCost
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), cost)
		if err != nil {
			log.Fatalf("failed to hash password: %v", err)
		}

		permissions := []struct {
			Name string
			Desc string
		}{
			{"admin", "full administrator"},
			{"manage_invoices", "Can view and settle any customer's invoices"},
		}
		for _, p := range permissions {
			if err := db.Exec("INSERT INTO permissions (name, description, created_at) VALUES (?, ?, now()) ON CONFLICT (name) DO NOTHING", p.Name, p.Desc).Error; err != nil {
				log.Fatalf("failed to insert permission %s: %v", p.Name, err)
			}
		}

		staffID := ensureUser(db, "ops@mail.com", "Ops Staff", string(hash), nil)
		grant(db, staffID, "manage_invoices")
		fmt.Println("Seeded staff user: ops@mail.com")

		customerID := sampleCustomerID
		ensureUser(db, "ama@mail.com", "Ama Mensah", string(hash), &customerID)
		fmt.Println("Seeded customer user: ama@mail.com")

		seedInvoice(db, "INV-2026-0001", customerID, "ama@mail.com")
	},
}

func ensureUser(db *gorm.DB, email, name, hash string, customerID *int64) int64 {
	var id int64
	if err := db.Raw("SELECT id FROM users WHERE email = ?", email).Row().Scan(&id); err == nil {
		fmt.Println("user already exists; will ensure permissions:", email)
		return id
	}

	err := db.Raw("INSERT INTO users (email, name, password_hash, customer_id, is_active, created_at, updated_at) VALUES (?, ?, ?, ?, true, now(), now()) RETURNING id",
		email, name, hash, customerID).Row().Scan(&id)
	if err != nil {
		log.Fatalf("failed to insert user %s: %v", email, err)
	}
	return id
}

func grant(db *gorm.DB, userID int64, permission string) {
	var pid int64
	if err := db.Raw("SELECT id FROM permissions WHERE name = ?", permission).Row().Scan(&pid); err != nil {
		log.Fatalf("permission not found %s: %v", permission, err)
	}

	if err := db.Exec("INSERT INTO user_permissions (user_id, permission_id, created_at) VALUES (?, ?, now()) ON CONFLICT DO NOTHING", userID, pid).Error; err != nil {
		log.Fatalf("failed to grant permission %s: %v", permission, err)
	}
}

func seedInvoice(db *gorm.DB, number string, customerID int64, email string) {
	var exists int
	if err := db.Raw("SELECT 1 FROM invoices WHERE invoice_number = ?", number).Row().Scan(&exists); err == nil {
		fmt.Println("invoice already exists:", number)
		return
	}

	due := time.Now().UTC().AddDate(0, 0, 14)
	inv := &invoicedm.Invoice{
		InvoiceNumber: number,
		CustomerID:    customerID,
		BillingEmail:  email,
		Subtotal:      decimal.NewFromInt(900),
		Tax:           decimal.NewFromInt(150),
		Discount:      decimal.NewFromInt(50),
		PaymentStatus: invoicedm.StatusUnpaid,
		DueDate:       &due,
	}
	inv.RecomputeTotal()

	err := invoicePostgres.NewInvoiceRepository(db).Create(context.Background(), inv)
	if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		log.Fatalf("failed to insert invoice %s: %v", number, err)
	}
	fmt.Printf("Seeded invoice %s (id %d, total %s)\n", number, inv.ID, inv.Total.StringFixed(2))
}

func init() {
	seedCmd.Flags().StringVar(&seedPassword, "password", "password", "Password for the seeded users")
}
