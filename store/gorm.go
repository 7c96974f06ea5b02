// store/gorm.go - gorm-backed Store (Postgres in production)
package store

import (
	"context"
	"errors"
	"time"

	"huntparty/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
	return classify(err)
}

// ================== USERS ==================

func (s *GormStore) CreateUser(ctx context.Context, user *models.User) error {
	return classify(s.db.WithContext(ctx).Create(user).Error)
}

func (s *GormStore) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, classify(err)
	}
	return &user, nil
}

func (s *GormStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, classify(err)
	}
	return &user, nil
}

// IncrementPoints runs the increment and the read-back in one transaction
// (a savepoint when already inside one). The UPDATE holds the row lock until
// commit, so the value read back is exactly this call's result.
func (s *GormStore) IncrementPoints(ctx context.Context, userID uint, delta int, at time.Time) (int, error) {
	var totals []int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("id = ?", userID).
			Updates(map[string]interface{}{
				"total_points":      gorm.Expr("total_points + ?", delta),
				"points_updated_at": at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&models.User{}).Where("id = ?", userID).Pluck("total_points", &totals).Error
	})
	if err != nil {
		return 0, classify(err)
	}
	if len(totals) == 0 {
		return 0, ErrNotFound
	}
	return totals[0], nil
}

func (s *GormStore) SaveStreak(ctx context.Context, userID uint, state models.StreakState, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"current_streak":    state.Current,
			"longest_streak":    state.Longest,
			"last_activity_at":  state.LastActivity,
			"streak_updated_at": at,
		})
	if res.Error != nil {
		return classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ================== PARTIES & MEMBERSHIPS ==================

func (s *GormStore) CreateParty(ctx context.Context, party *models.Party) error {
	return classify(s.db.WithContext(ctx).Create(party).Error)
}

func (s *GormStore) GetParty(ctx context.Context, partyID uint) (*models.Party, error) {
	var party models.Party
	if err := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", partyID, true).First(&party).Error; err != nil {
		return nil, classify(err)
	}
	return &party, nil
}

func (s *GormStore) GetPartyByCode(ctx context.Context, code string) (*models.Party, error) {
	var party models.Party
	if err := s.db.WithContext(ctx).Where("invite_code = ? AND is_active = ?", code, true).First(&party).Error; err != nil {
		return nil, classify(err)
	}
	return &party, nil
}

func (s *GormStore) SaveParty(ctx context.Context, party *models.Party) error {
	return classify(s.db.WithContext(ctx).Save(party).Error)
}

func (s *GormStore) GetMembership(ctx context.Context, partyID, userID uint) (*models.Membership, error) {
	var membership models.Membership
	if err := s.db.WithContext(ctx).
		Where("party_id = ? AND user_id = ?", partyID, userID).
		First(&membership).Error; err != nil {
		return nil, classify(err)
	}
	return &membership, nil
}

func (s *GormStore) ActiveMembership(ctx context.Context, userID uint) (*models.Membership, error) {
	var membership models.Membership
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("joined_at DESC").
		First(&membership).Error; err != nil {
		return nil, classify(err)
	}
	return &membership, nil
}

func (s *GormStore) SaveMembership(ctx context.Context, membership *models.Membership) error {
	return classify(s.db.WithContext(ctx).Save(membership).Error)
}

func (s *GormStore) ActiveMembers(ctx context.Context, partyID uint) ([]models.Membership, error) {
	var members []models.Membership
	err := s.db.WithContext(ctx).
		Where("party_id = ? AND is_active = ?", partyID, true).
		Order("joined_at ASC, id ASC").
		Find(&members).Error
	return members, classify(err)
}

func (s *GormStore) ActivePartyID(ctx context.Context, userID uint) (uint, bool, error) {
	membership, err := s.ActiveMembership(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return membership.PartyID, true, nil
}

func (s *GormStore) ActiveStandings(ctx context.Context, partyID uint) ([]models.Standing, error) {
	var rows []models.Standing
	err := s.db.WithContext(ctx).
		Table("memberships").
		Select(`users.id AS user_id,
			COALESCE(NULLIF(users.display_name, ''), users.username) AS display_name,
			users.total_points AS total_points,
			users.points_updated_at AS points_updated_at,
			(SELECT COUNT(*) FROM applications WHERE applications.user_id = users.id) AS application_count`).
		Joins("JOIN users ON users.id = memberships.user_id").
		Where("memberships.party_id = ? AND memberships.is_active = ?", partyID, true).
		Scan(&rows).Error
	return rows, classify(err)
}

// ================== APPLICATIONS ==================

func (s *GormStore) CreateApplication(ctx context.Context, app *models.Application) error {
	return classify(s.db.WithContext(ctx).Create(app).Error)
}

func (s *GormStore) GetApplication(ctx context.Context, appID uint) (*models.Application, error) {
	var app models.Application
	if err := s.db.WithContext(ctx).First(&app, appID).Error; err != nil {
		return nil, classify(err)
	}
	return &app, nil
}

func (s *GormStore) SaveApplication(ctx context.Context, app *models.Application) error {
	return classify(s.db.WithContext(ctx).Save(app).Error)
}

func (s *GormStore) ListApplications(ctx context.Context, userID uint) ([]models.Application, error) {
	var apps []models.Application
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&apps).Error
	return apps, classify(err)
}

func (s *GormStore) CountApplications(ctx context.Context, userID uint) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Application{}).Where("user_id = ?", userID).Count(&count).Error
	return int(count), classify(err)
}

// ================== ACTIVITY EVENTS ==================

func (s *GormStore) AppendEvent(ctx context.Context, event *models.ActivityEvent) error {
	return classify(s.db.WithContext(ctx).Create(event).Error)
}

func (s *GormStore) InsertMilestone(ctx context.Context, event *models.ActivityEvent) (*models.ActivityEvent, bool, error) {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(event)
	if res.Error != nil {
		return nil, false, classify(res.Error)
	}
	if res.RowsAffected == 1 {
		return event, true, nil
	}

	var existing models.ActivityEvent
	err := s.db.WithContext(ctx).
		Where("party_id = ? AND user_id = ? AND milestone_label = ?", event.PartyID, event.UserID, event.MilestoneLabel).
		First(&existing).Error
	if err != nil {
		return nil, false, classify(err)
	}
	return &existing, false, nil
}

func (s *GormStore) ListPartyEvents(ctx context.Context, partyID, beforeID uint, limit int) ([]models.ActivityEvent, error) {
	var events []models.ActivityEvent
	query := s.db.WithContext(ctx).Where("party_id = ?", partyID)
	if beforeID > 0 {
		query = query.Where("id < ?", beforeID)
	}
	err := query.Order("id DESC").Limit(limit).Find(&events).Error
	return events, classify(err)
}
