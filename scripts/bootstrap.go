package main

import (
	"context"
	"os"
	"time"

	"github.com/pesio-ai/be-app-crm/internal/config"
	"github.com/pesio-ai/be-app-crm/internal/logger"
	"github.com/pesio-ai/be-app-crm/internal/repository"
	"github.com/pesio-ai/be-app-crm/internal/service"
	apperrors "github.com/pesio-ai/be-app-crm/pkg/errors"
	"github.com/pesio-ai/be-app-crm/pkg/password"
)

// Bootstrap creates demo data for development and testing
func main() {
	log := logger.New(logger.Config{Level: "info", ServiceName: "crm-bootstrap", Pretty: true})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	pw := os.Getenv("BOOTSTRAP_PASSWORD")
	if pw == "" {
		pw = "password123"
	}

	ctx := context.Background()

	log.Info().Msg("Connecting to database...")
	pool, err := repository.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	if err := repository.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate schema")
	}

	userRepo := repository.NewUserRepository(pool, log)
	permRepo := repository.NewPermissionRepository(pool, log)
	leadRepo := repository.NewLeadRepository(pool, log)
	detailRepo := repository.NewLeadDetailRepository(pool, log)

	users := service.NewUserService(userRepo, permRepo, log)
	leads := service.NewLeadService(leadRepo, detailRepo, log)
	details := service.NewLeadDetailService(detailRepo, leadRepo, log)
	services := service.NewCatalogService(repository.NewCatalogRepository(pool, log, repository.CatalogServices), log)
	statuses := service.NewCatalogService(repository.NewCatalogRepository(pool, log, repository.CatalogStatuses), log)

	if err := users.SeedPermissions(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed permissions")
	}

	admin, err := ensureAdmin(ctx, userRepo, pw)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create admin user")
	}
	log.Info().Int64("user_id", admin.ID).Str("email", admin.Email).Msg("✓ Admin user ready")
	actor := service.NewActor(admin)

	grants, err := permissionIDs(ctx, permRepo, service.ModuleDashboard, service.ModuleLeads, service.ModuleLeadDetails)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load permissions")
	}
	rep, err := userRepo.GetByEmail(ctx, "rep@test.com")
	if apperrors.Is(err, apperrors.ErrCodeNotFound) {
		rep, err = users.Store(ctx, actor, &service.CreateUserRequest{
			Name:                 "Sales Rep",
			Email:                "rep@test.com",
			Password:             pw,
			PasswordConfirmation: pw,
			Role:                 repository.RoleUser,
			Permissions:          grants,
		})
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create sales rep")
	}
	log.Info().Int64("user_id", rep.ID).Int("grants", len(grants)).Msg("✓ Created sales rep (email: rep@test.com)")

	serviceIDs, err := ensureCatalog(ctx, services, actor, "Web Development", "Mobile Apps", "SEO")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create services")
	}
	statusIDs, err := ensureCatalog(ctx, statuses, actor, "New", "Interested", "Not Interested", "Converted")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create statuses")
	}
	log.Info().Int("services", len(serviceIDs)).Int("statuses", len(statusIDs)).Msg("✓ Created catalogs")

	now := time.Now().In(cfg.Location())
	samples := []struct {
		lead    service.LeadInput
		lastAgo time.Duration
		nextIn  time.Duration
	}{
		{service.LeadInput{Name: "Asha Verma", CompanyName: "Verma Textiles", Phone: "9876500001"}, 48 * time.Hour, 0},
		{service.LeadInput{Name: "Rohan Das", Email: "rohan@dasfoods.test", Location: "Pune"}, 72 * time.Hour, -24 * time.Hour},
		{service.LeadInput{Name: "Meera Iyer", CompanyName: "Iyer Clinics", Phone: "9876500003"}, 24 * time.Hour, 72 * time.Hour},
	}
	for i, s := range samples {
		in := s.lead
		in.ServiceID = serviceIDs[i%len(serviceIDs)]
		in.StatusID = statusIDs[0]
		in.AssignedUserID = rep.ID

		lead, err := leads.Store(ctx, actor, &in)
		if apperrors.Is(err, apperrors.ErrCodeDuplicate) {
			log.Info().Str("name", in.Name).Msg("Lead already exists, skipping")
			continue
		}
		if err != nil {
			log.Fatal().Err(err).Str("name", in.Name).Msg("Failed to create lead")
		}

		followup := now.Add(-s.lastAgo)
		next := now.Add(s.nextIn)
		if _, err := details.Store(ctx, actor, &service.DetailInput{
			LeadID:              lead.ID,
			CallFollowupDate:    &followup,
			CallFollowupSummary: "Introductory call",
			NextCallDate:        &next,
		}); err != nil {
			log.Fatal().Err(err).Int64("lead_id", lead.ID).Msg("Failed to create lead detail")
		}
		log.Info().Int64("lead_id", lead.ID).Str("name", in.Name).Msg("✓ Created lead")
	}

	log.Info().Msg("Bootstrap complete")
}

// ensureAdmin returns the admin account, creating it on first run
func ensureAdmin(ctx context.Context, users *repository.UserRepository, pw string) (*repository.User, error) {
	const email = "admin@test.com"

	existing, err := users.GetByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if !apperrors.Is(err, apperrors.ErrCodeNotFound) {
		return nil, err
	}

	hash, err := password.Hash(pw, nil)
	if err != nil {
		return nil, err
	}
	admin := &repository.User{Name: "Admin", Email: email, PasswordHash: hash, Role: repository.RoleAdmin}
	if err := users.Create(ctx, admin); err != nil {
		return nil, err
	}
	return admin, nil
}

// ensureCatalog returns the ids of the named entries, creating missing ones
func ensureCatalog(ctx context.Context, catalog *service.CatalogService, actor *service.Actor, names ...string) ([]int64, error) {
	existing, err := catalog.Index(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]int64, len(existing))
	for _, e := range existing {
		byName[e.Name] = e.ID
	}

	ids := make([]int64, 0, len(names))
	for _, name := range names {
		if id, ok := byName[name]; ok {
			ids = append(ids, id)
			continue
		}
		e, err := catalog.Store(ctx, actor, name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, e.ID)
	}
	return ids, nil
}

// permissionIDs returns the ids of every grant of the given modules
func permissionIDs(ctx context.Context, perms *repository.PermissionRepository, modules ...string) ([]int64, error) {
	all, err := perms.List(ctx)
	if err != nil {
		return nil, err
	}

	want := make(map[string]bool, len(modules))
	for _, m := range modules {
		want[m] = true
	}

	var ids []int64
	for _, p := range all {
		if want[p.Module] {
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}
