package cmd

import (
	"fmt"
	"log"

	"github.com/frahmantamala/leave-management/internal/core/database"
	absenceDatamodel "github.com/frahmantamala/leave-management/internal/core/datamodel/absence"
	employeeDatamodel "github.com/frahmantamala/leave-management/internal/core/datamodel/employee"
	ledgerDatamodel "github.com/frahmantamala/leave-management/internal/core/datamodel/ledger"
	leaveRequestDatamodel "github.com/frahmantamala/leave-management/internal/core/datamodel/leaverequest"
	leaveTypeDatamodel "github.com/frahmantamala/leave-management/internal/core/datamodel/leavetype"
	notificationDatamodel "github.com/frahmantamala/leave-management/internal/core/datamodel/notification"
	"github.com/frahmantamala/leave-management/internal/employee"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with one enterprise, its departments, an employee per role and the leave type catalog.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := database.Open(database.Options{Source: cfg.Database.Source})
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		if database.IsSQLite(cfg.Database.Source) {
			if err := database.AutoMigrate(db); err != nil {
				log.Fatalf("failed to migrate sqlite database: %v", err)
			}
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			if clearData {
				if err := clearSeedData(tx); err != nil {
					return err
				}
				fmt.Println("Cleared existing data")
			}
			return seed(tx, cfg.Security.BCryptCost, cfg.Leave.PrimaryLeaveType, cfg.Leave.AnnualDays)
		})
		if err != nil {
			log.Fatalf("seeding failed: %v", err)
		}
		fmt.Println("Seeding complete. Every seeded account uses the password \"password\".")
	},
}

type seedEmployee struct {
	first, last, email string
	role               employee.Role
	position           string
	department         string
	manager            string
}

var seedEmployees = []seedEmployee{
	{"Aminata", "Sow", "exec@leave.local", employee.RoleExec, "Chief Executive", "", ""},
	{"Ibrahima", "Fall", "depthead@leave.local", employee.RoleDeptHead, "Head of Operations", "Operations", ""},
	{"Fatou", "Ndiaye", "hr@leave.local", employee.RoleHR, "HR Officer", "Human Resources", ""},
	{"Moussa", "Diop", "manager@leave.local", employee.RoleManager, "Operations Manager", "Operations", "depthead@leave.local"},
	{"Awa", "Ba", "awa@leave.local", employee.RoleEmployee, "Analyst", "Operations", "manager@leave.local"},
	{"Kofi", "Mensah", "kofi@leave.local", employee.RoleEmployee, "Engineer", "Operations", "manager@leave.local"},
	{"Admin", "User", "admin@leave.local", employee.RoleAdmin, "Administrator", "", ""},
}

func intPtr(v int) *int { return &v }

func seed(tx *gorm.DB, bcryptCost int, primaryType string, annualDays int) error {
	enterprise := employeeDatamodel.Enterprise{Name: "Acme"}
	if err := tx.Where(employeeDatamodel.Enterprise{Name: enterprise.Name}).FirstOrCreate(&enterprise).Error; err != nil {
		return fmt.Errorf("seed enterprise: %w", err)
	}

	departments := map[string]int64{}
	for _, name := range []string{"Operations", "Human Resources"} {
		dept := employeeDatamodel.Department{Name: name, EnterpriseID: &enterprise.ID}
		if err := tx.Where(employeeDatamodel.Department{Name: name}).FirstOrCreate(&dept).Error; err != nil {
			return fmt.Errorf("seed department %s: %w", name, err)
		}
		departments[name] = dept.ID
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcryptCost)
	if err != nil {
		return err
	}

	ids := map[string]int64{}
	for i, e := range seedEmployees {
		row := employeeDatamodel.Employee{
			FirstName:    e.first,
			LastName:     e.last,
			Email:        e.email,
			PasswordHash: string(hash),
			Role:         string(e.role),
			Position:     e.position,
			Matricule:    fmt.Sprintf("EMP-%04d", i+1),
			EnterpriseID: &enterprise.ID,
			Active:       true,
		}
		if id, ok := departments[e.department]; ok {
			row.DepartmentID = &id
		}
		if id, ok := ids[e.manager]; ok {
			row.ManagerID = &id
		}
		if err := tx.Where(employeeDatamodel.Employee{Email: e.email}).FirstOrCreate(&row).Error; err != nil {
			return fmt.Errorf("seed employee %s: %w", e.email, err)
		}
		ids[e.email] = row.ID
		fmt.Println("Seeded employee:", e.email, "role", e.role)
	}

	types := []leaveTypeDatamodel.LeaveType{
		{Name: primaryType, Description: "Paid annual leave", MaxDays: intPtr(annualDays)},
		{Name: "Sick", Description: "Sick leave with a medical certificate", RequiresJustification: true},
		{Name: "Maternity", Description: "Maternity leave", MaxDays: intPtr(98), RequiresJustification: true},
		{Name: "Unpaid", Description: "Unpaid leave"},
	}
	for _, t := range types {
		t.Active = true
		if err := tx.Where(leaveTypeDatamodel.LeaveType{Name: t.Name}).FirstOrCreate(&t).Error; err != nil {
			return fmt.Errorf("seed leave type %s: %w", t.Name, err)
		}
		fmt.Println("Seeded leave type:", t.Name)
	}
	return nil
}

func clearSeedData(tx *gorm.DB) error {
	rows := []interface{}{
		&notificationDatamodel.Notification{},
		&absenceDatamodel.Absence{},
		&ledgerDatamodel.LedgerEntry{},
		&leaveRequestDatamodel.LeaveRequest{},
		&leaveTypeDatamodel.LeaveType{},
		&employeeDatamodel.Employee{},
		&employeeDatamodel.Department{},
		&employeeDatamodel.Enterprise{},
	}
	for _, row := range rows {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(row).Error; err != nil {
			return fmt.Errorf("clear %T: %w", row, err)
		}
	}
	return nil
}
