// workers/roster_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"team-engagement-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MirroredMember matches the JSON the team service returns for one roster
// entry, including the supporter's follow list.
type MirroredMember struct {
	ExternalUserID string    `json:"external_user_id"`
	TeamID         string    `json:"team_id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Role           string    `json:"role"` // supporter, athlete, coach
	Follows        []string  `json:"follows,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// GetRosterChangesResponse is the top-level structure of the team service
// response.
type GetRosterChangesResponse struct {
	Members []MirroredMember `json:"members"`
}

// RosterSyncWorker mirrors team members, emails, and the supporter→athlete
// follow graph from the team service into local tables. The notification
// dispatcher reads those mirrors for fan-out and email fallback.
type RosterSyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string // e.g., "http://localhost:8500"
	endpointPath string // e.g., "/api/v1/public/roster"
	serviceToken string
	httpClient   *http.Client
}

func NewRosterSyncWorker(db *gorm.DB, teamServiceBaseURL, endpointPath, serviceToken string) *RosterSyncWorker {
	return &RosterSyncWorker{
		db:           db,
		interval:     1 * time.Minute,
		baseURL:      teamServiceBaseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (w *RosterSyncWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Roster Sync Worker (team-service → team_members)…")
	go w.run(ctx)
}

func (w *RosterSyncWorker) run(ctx context.Context) {
	// Initial sync (backfill) from the beginning of time
	if err := w.syncBatch(ctx, time.Time{}); err != nil {
		log.Printf("⚠️ Initial roster sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			lastSyncTime := w.getLastSyncTime()
			if err := w.syncBatch(ctx, lastSyncTime); err != nil {
				log.Printf("❌ Roster sync batch failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Roster Sync Worker stopped")
			return
		}
	}
}

// getLastSyncTime finds the most recent UpdatedAt from the local mirror.
func (w *RosterSyncWorker) getLastSyncTime() time.Time {
	var lastTime time.Time
	err := w.db.Raw("SELECT MAX(updated_at) FROM team_members WHERE deleted_at IS NULL").Scan(&lastTime).Error
	if err != nil || lastTime.IsZero() {
		return time.Unix(0, 0)
	}
	return lastTime
}

// syncBatch fetches roster changes from the team service and upserts the
// local TeamMember and SupporterFollow mirrors.
func (w *RosterSyncWorker) syncBatch(ctx context.Context, since time.Time) error {
	sinceStr := since.UTC().Format(time.RFC3339)

	base, err := url.Parse(w.baseURL)
	if err != nil {
		return fmt.Errorf("invalid team service URL '%s': %w", w.baseURL, err)
	}
	endpoint, err := url.Parse(w.endpointPath)
	if err != nil {
		return fmt.Errorf("invalid roster endpoint path '%s': %w", w.endpointPath, err)
	}
	full := base.ResolveReference(endpoint)
	q := full.Query()
	q.Set("since", sinceStr)
	full.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", full.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("roster fetch failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("team service returned %d: %s", resp.StatusCode, string(body))
	}

	var changes GetRosterChangesResponse
	if err := json.Unmarshal(body, &changes); err != nil {
		return fmt.Errorf("failed to decode roster response: %w", err)
	}
	if len(changes.Members) == 0 {
		return nil
	}

	synced := 0
	for _, m := range changes.Members {
		if m.ExternalUserID == "" || m.TeamID == "" {
			continue
		}

		member := models.TeamMember{
			ID:             uuid.NewString(),
			ExternalUserID: m.ExternalUserID,
			TeamID:         m.TeamID,
			Name:           m.Name,
			Email:          m.Email,
			Role:           m.Role,
		}
		if err := w.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_user_id"}, {Name: "team_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "email", "role", "updated_at"}),
		}).Create(&member).Error; err != nil {
			log.Printf("⚠️ Failed to upsert member %s: %v", m.ExternalUserID, err)
			continue
		}

		if err := w.syncFollows(m); err != nil {
			log.Printf("⚠️ Failed to sync follows for %s: %v", m.ExternalUserID, err)
			continue
		}
		synced++
	}

	log.Printf("[SYNC] ✅ Roster sync complete: %d/%d members", synced, len(changes.Members))
	return nil
}

// syncFollows replaces the supporter's follow edges with the authoritative
// list from the team service. Follows is nil for non-supporters.
func (w *RosterSyncWorker) syncFollows(m MirroredMember) error {
	if m.Role != models.MemberRoleSupporter {
		return nil
	}
	return w.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("supporter_id = ? AND team_id = ?", m.ExternalUserID, m.TeamID).
			Delete(&models.SupporterFollow{}).Error; err != nil {
			return err
		}
		for _, athleteID := range m.Follows {
			follow := models.SupporterFollow{
				ID:          uuid.NewString(),
				SupporterID: m.ExternalUserID,
				TeamID:      m.TeamID,
				AthleteID:   athleteID,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "supporter_id"}, {Name: "team_id"}, {Name: "athlete_id"}},
				DoNothing: true,
			}).Create(&follow).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
