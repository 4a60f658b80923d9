package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/redtape-api/internal/models"
	"github.com/noah-isme/redtape-api/internal/repository"
	"github.com/noah-isme/redtape-api/migrations"
	"github.com/noah-isme/redtape-api/pkg/config"
	"github.com/noah-isme/redtape-api/pkg/database"
	"github.com/noah-isme/redtape-api/pkg/ids"
	"github.com/noah-isme/redtape-api/pkg/logger"
)

type reportSeeder interface {
	ExistsByEmailAndDescription(ctx context.Context, email, description string) (bool, error)
	Create(ctx context.Context, report *models.Report) error
}

func main() {
	var (
		adminEmail    string
		adminPassword string
		skipSamples   bool
	)
	flag.StringVar(&adminEmail, "admin-email", "", "Admin account email (created or updated)")
	flag.StringVar(&adminPassword, "admin-password", "", "Admin account password")
	flag.BoolVar(&skipSamples, "skip-samples", false, "Do not insert sample reports")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("connect postgres", zap.Error(err))
	}
	defer db.Close()

	if _, err := database.Migrate(ctx, db, migrations.Files, logr); err != nil {
		logr.Fatal("migrate", zap.Error(err))
	}

	if adminEmail != "" {
		if len(adminPassword) < 8 {
			logr.Fatal("admin password must be at least 8 characters")
		}
		digest, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
		if err != nil {
			logr.Fatal("hash admin password", zap.Error(err))
		}
		admin := &models.User{Email: adminEmail, PasswordDigest: string(digest), Admin: true}
		if err := repository.NewUserRepository(db).Upsert(ctx, admin); err != nil {
			logr.Fatal("upsert admin", zap.Error(err))
		}
		logr.Info("admin ready", logger.Email("email", admin.Email), zap.String("id", admin.ID))
	}

	if cfg.Env == config.EnvProduction || skipSamples {
		logr.Info("skipping sample reports", zap.String("env", cfg.Env))
		return
	}

	created, err := seedReports(ctx, repository.NewReportRepository(db), sampleReports(time.Now().UTC()))
	if err != nil {
		logr.Fatal("seed reports", zap.Error(err))
	}
	logr.Info("seeding complete", zap.Int("created", created))
}

// seedReports inserts each sample unless one with the same email and project description exists.
func seedReports(ctx context.Context, store reportSeeder, samples []models.Report) (int, error) {
	created := 0
	for i := range samples {
		sample := samples[i]
		exists, err := store.ExistsByEmailAndDescription(ctx, sample.Email, sample.ProjectDescription)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}
		sample.VerificationToken = ids.New()
		if err := store.Create(ctx, &sample); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

func sampleReports(now time.Time) []models.Report {
	day := 24 * time.Hour
	verified := func(ago time.Duration) *time.Time {
		t := now.Add(-ago)
		return &t
	}
	return []models.Report{
		{
			Email:              "sarah.builder@example.com",
			ProjectType:        "Accessory dwelling unit (ADU)",
			ProjectDescription: "Building a 600 sq ft ADU in my backyard for my aging mother",
			Location:           "Echo Park, 90026",
			IssueDescription:   "Applied for an ADU permit in January and still waiting in October. The same drainage plan was requested three times, and each resubmission cost another architect fee.",
			TimelineImpact:     "6-12 months",
			FinancialImpact:    "$2,400 in duplicate architect fees, $12,000 in holding costs on construction loan",
			IssueCategories:    []string{"Permits", "Plan review", "Fees"},
			Departments:        []string{"Building & Safety"},
			Anonymous:          true,
			Status:             models.ReportStatusVerified,
			VerifiedAt:         verified(14 * day),
		},
		{
			Email:              "mike.developer@example.com",
			ProjectType:        "New construction",
			ProjectDescription: "Small 4-unit apartment building on vacant lot",
			Location:           "South LA, 90003",
			IssueDescription:   "Zoning said the project was compliant, Building & Safety said zoning was wrong. Eight months of being sent back and forth between departments with plans that may now be worthless.",
			TimelineImpact:     "6-12 months",
			FinancialImpact:    "$40,000 in architectural plans, $6,000/month property taxes on vacant lot",
			IssueCategories:    []string{"Permits", "Zoning", "Plan review"},
			Departments:        []string{"Building & Safety", "Planning"},
			Anonymous:          true,
			Status:             models.ReportStatusVerified,
			VerifiedAt:         verified(7 * day),
		},
		{
			Email:              "lisa.homeowner@example.com",
			ProjectType:        "Renovation / Remodel",
			ProjectDescription: "Converting garage to office space",
			Location:           "Silver Lake",
			IssueDescription:   "First inspector failed the conversion for improper ventilation, the second for excessive ventilation after we fixed it exactly as instructed. A fourth inspection is scheduled next month.",
			TimelineImpact:     "3-6 months",
			FinancialImpact:    "$3,000 in additional contractor fees for multiple fixes",
			IssueCategories:    []string{"Inspections"},
			Departments:        []string{"Building & Safety"},
			Anonymous:          true,
			Status:             models.ReportStatusVerified,
			VerifiedAt:         verified(3 * day),
		},
		{
			Email:              "rachel.landlord@example.com",
			ProjectType:        "Renovation / Remodel",
			ProjectDescription: "Upgrading 1940s apartment building electrical system",
			Location:           "Koreatown, 90020",
			IssueDescription:   "The permit sat under review for seven months before a supervisor admitted the application was lost. After resubmitting we were told about additional permits nobody mentioned before.",
			TimelineImpact:     "6-12 months",
			FinancialImpact:    "$15,000 in delayed construction costs, tenants at risk with outdated wiring",
			IssueCategories:    []string{"Permits", "Plan review"},
			Departments:        []string{"Building & Safety", "Fire Department"},
			Anonymous:          true,
			Status:             models.ReportStatusVerified,
			VerifiedAt:         verified(day),
		},
		{
			Email:              "tony.builder@example.com",
			ProjectType:        "Renovation / Remodel",
			ProjectDescription: "Kitchen and bathroom remodel",
			Location:           "Valley Village, 91607",
			IssueDescription:   "Final inspection was scheduled three times and the inspector never showed. Without a final we cannot close out the contractor, who is now threatening a lien.",
			TimelineImpact:     "3-6 months",
			FinancialImpact:    "$8,000 holding final contractor payment, risk of property lien",
			IssueCategories:    []string{"Inspections"},
			Departments:        []string{"Building & Safety"},
			Anonymous:          true,
			Status:             models.ReportStatusVerified,
			VerifiedAt:         verified(6 * day),
		},
	}
}
