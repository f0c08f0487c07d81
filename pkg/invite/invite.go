// Package invite issues forgery-resistant survey invitations. Each
// invitation is a short random code stored with the participant's email;
// following the survey link again finds the code already issued, so
// inviting is idempotent per address.
package invite

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"
)

// ErrExhaustedRetries indicates that no collision-free invitation code was
// found within the retry budget. With a 6-character code over a 57-symbol
// alphabet this signals a store problem, not bad luck.
var ErrExhaustedRetries = errors.New("invite: could not issue a unique invitation code")

// alphabet is the code alphabet with the ambiguous symbols (0/O, 1/l)
// removed, matching what the survey system itself generates.
const alphabet = "abcdefghijkmnopqrstuvwxyzABCDEFGHIJKLMNPQRSTUVWXYZ23456789"

const (
	hashLength = 6
	maxTries   = 5
)

// Shuffler is the randomness an invitation issuer needs. *math/rand.Rand
// satisfies it, which keeps code generation deterministic under a seeded
// source in tests.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// SurveyParticipant is one row of the survey system's participant table.
// The table is owned by the external survey system; only inserts of new
// invitations go through this core.
type SurveyParticipant struct {
	ParticipantID int    `gorm:"column:participant_id;primaryKey;autoIncrement"`
	SurveyID      int    `gorm:"column:survey_id"`
	EventID       int    `gorm:"column:event_id"`
	Hash          string `gorm:"column:hash;size:6"`
	LegacyHash    string `gorm:"column:legacy_hash"`
	Email         string `gorm:"column:participant_email"`
	Identifier    string `gorm:"column:participant_identifier"`
}

// TableName returns the survey system's participant table name.
func (SurveyParticipant) TableName() string { return "redcap_surveys_participants" }

// SurveyResponse is one row of the survey system's response table.
type SurveyResponse struct {
	ResponseID      int        `gorm:"column:response_id;primaryKey;autoIncrement"`
	ParticipantID   int        `gorm:"column:participant_id"`
	Record          string     `gorm:"column:record;size:100"`
	FirstSubmitTime *time.Time `gorm:"column:first_submit_time"`
	CompletionTime  *time.Time `gorm:"column:completion_time"`
	ReturnCode      string     `gorm:"column:return_code"`
}

// TableName returns the survey system's response table name.
func (SurveyResponse) TableName() string { return "redcap_surveys_response" }

// Survey maps a survey to its project.
type Survey struct {
	SurveyID  int `gorm:"column:survey_id;primaryKey"`
	ProjectID int `gorm:"column:project_id"`
}

// TableName returns the survey table name.
func (Survey) TableName() string { return "redcap_surveys" }

// EventArm links a project to its event arms.
type EventArm struct {
	ArmID     int `gorm:"column:arm_id;primaryKey"`
	ProjectID int `gorm:"column:project_id"`
	ArmNum    int `gorm:"column:arm_num"`
}

// TableName returns the event arm table name.
func (EventArm) TableName() string { return "redcap_events_arms" }

// EventMetadata links an arm to its events.
type EventMetadata struct {
	EventID int `gorm:"column:event_id;primaryKey"`
	ArmID   int `gorm:"column:arm_id"`
}

// TableName returns the event metadata table name.
func (EventMetadata) TableName() string { return "redcap_events_metadata" }

// Response is one completed (or in-flight) survey response for a
// participant.
type Response struct {
	Record         string     `gorm:"column:record"`
	CompletionTime *time.Time `gorm:"column:completion_time"`
}

// SecureSurvey issues and looks up invitations for one survey.
type SecureSurvey struct {
	db       *gorm.DB
	rng      Shuffler
	surveyID int
	logger   *slog.Logger
}

// NewSecureSurvey creates an invitation issuer for the given survey.
func NewSecureSurvey(db *gorm.DB, rng Shuffler, surveyID int, logger *slog.Logger) *SecureSurvey {
	if logger == nil {
		logger = slog.Default()
	}
	return &SecureSurvey{db: db, rng: rng, surveyID: surveyID, logger: logger}
}

// eventID resolves the survey's event through its project's arm. The
// production surveys here are single-event, so the first event wins.
func (s *SecureSurvey) eventID(db *gorm.DB) (int, error) {
	var eventID int
	err := db.Session(&gorm.Session{NewDB: true}).
		Table("redcap_surveys").
		Joins("JOIN redcap_events_arms ON redcap_events_arms.project_id = redcap_surveys.project_id").
		Joins("JOIN redcap_events_metadata ON redcap_events_metadata.arm_id = redcap_events_arms.arm_id").
		Where("redcap_surveys.survey_id = ?", s.surveyID).
		Select("redcap_events_metadata.event_id").
		Limit(1).
		Scan(&eventID).Error
	if err != nil {
		return 0, fmt.Errorf("invite: resolve event for survey %d: %w", s.surveyID, err)
	}
	return eventID, nil
}

// invitationQuery finds an existing invitation code. With multi=true only
// unanswered invitations count, so a participant who already responded
// gets a fresh code for the next round.
func (s *SecureSurvey) invitationQuery(db *gorm.DB, eventID int, multi bool) *gorm.DB {
	q := db.Session(&gorm.Session{NewDB: true}).
		Model(&SurveyParticipant{}).
		Select("redcap_surveys_participants.hash").
		Where("redcap_surveys_participants.survey_id = ?", s.surveyID).
		Where("redcap_surveys_participants.event_id = ?", eventID).
		Where("redcap_surveys_participants.hash > ''")
	if multi {
		q = q.Joins("LEFT JOIN redcap_surveys_response ON " +
			"redcap_surveys_response.participant_id = redcap_surveys_participants.participant_id").
			Where("redcap_surveys_response.participant_id IS NULL").
			Limit(1)
	}
	return q
}

// Invite returns the invitation code for email, issuing one if none
// exists. Issuing checks for a code collision and inserts inside one
// transaction, retrying with a fresh code on collision.
func (s *SecureSurvey) Invite(email string, multi bool) (string, error) {
	eventID, err := s.eventID(s.db)
	if err != nil {
		return "", err
	}

	var existing string
	err = s.invitationQuery(s.db, eventID, multi).
		Where("redcap_surveys_participants.participant_email = ?", email).
		Scan(&existing).Error
	if err != nil {
		return "", fmt.Errorf("invite: find invitation for %s: %w", email, err)
	}
	if existing != "" {
		return existing, nil
	}

	for try := 0; try < maxTries; try++ {
		code := s.generateCode()
		err := s.db.Transaction(func(tx *gorm.DB) error {
			var clash string
			err := s.invitationQuery(tx, eventID, multi).
				Where("redcap_surveys_participants.hash = ?", code).
				Scan(&clash).Error
			if err != nil {
				return err
			}
			if clash != "" {
				return errCollision
			}
			return tx.Create(&SurveyParticipant{
				SurveyID: s.surveyID,
				EventID:  eventID,
				Hash:     code,
				Email:    email,
			}).Error
		})
		switch {
		case err == nil:
			return code, nil
		case errors.Is(err, errCollision):
			s.logger.Warn("invitation code collision, retrying",
				"survey_id", s.surveyID, "try", try+1)
		default:
			return "", fmt.Errorf("invite: issue invitation for %s: %w", email, err)
		}
	}
	return "", fmt.Errorf("%w for %s", ErrExhaustedRetries, email)
}

var errCollision = errors.New("invite: code already taken")

// generateCode shuffles the alphabet, takes a prefix, and shuffles the
// prefix again, matching the survey system's own generator.
func (s *SecureSurvey) generateCode() string {
	cs := []byte(alphabet)
	s.rng.Shuffle(len(cs), func(i, j int) { cs[i], cs[j] = cs[j], cs[i] })
	lr := cs[:hashLength]
	s.rng.Shuffle(len(lr), func(i, j int) { lr[i], lr[j] = lr[j], lr[i] })
	var b strings.Builder
	b.Write(lr)
	return b.String()
}

// Responses lists the survey responses recorded for email's invitations.
func (s *SecureSurvey) Responses(email string) ([]Response, error) {
	eventID, err := s.eventID(s.db)
	if err != nil {
		return nil, err
	}

	var out []Response
	err = s.db.Session(&gorm.Session{NewDB: true}).
		Model(&SurveyResponse{}).
		Select("redcap_surveys_response.record, redcap_surveys_response.completion_time").
		Joins("JOIN redcap_surveys_participants ON "+
			"redcap_surveys_participants.participant_id = redcap_surveys_response.participant_id").
		Where("redcap_surveys_participants.participant_email = ?", email).
		Where("redcap_surveys_participants.survey_id = ?", s.surveyID).
		Where("redcap_surveys_participants.event_id = ?", eventID).
		Order("redcap_surveys_response.completion_time").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("invite: list responses for %s: %w", email, err)
	}
	return out, nil
}
