package services

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/watertrack/complaints-api/models"
)

// ComplaintService owns the complaint lifecycle: creation with code
// generation, status transitions, assignment and customer ratings. Every
// mutation runs in a single transaction together with its status-history
// append, and guards against concurrent writers with compare-and-swap
// updates instead of row locks, so the same code path works on PostgreSQL
// and the in-memory SQLite used by tests.
type ComplaintService struct {
	db     *gorm.DB
	logger *zap.Logger
	prefix string

	// Now supplies the wall clock for all timestamps and can be overridden
	// in tests for deterministic overdue/resolution arithmetic.
	Now func() time.Time
}

var complaintServiceInstance *ComplaintService

// InitComplaintService initializes the shared complaint service
func InitComplaintService(db *gorm.DB, logger *zap.Logger, prefix string) *ComplaintService {
	complaintServiceInstance = NewComplaintService(db, logger, prefix)
	return complaintServiceInstance
}

// GetComplaintService returns the initialized complaint service instance
func GetComplaintService() *ComplaintService {
	return complaintServiceInstance
}

// SetComplaintService sets the complaint service instance (primarily for testing)
func SetComplaintService(s *ComplaintService) {
	complaintServiceInstance = s
}

// NewComplaintService creates a complaint service bound to the given database
func NewComplaintService(db *gorm.DB, logger *zap.Logger, prefix string) *ComplaintService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ComplaintService{
		db:     db,
		logger: logger,
		prefix: prefix,
		Now:    time.Now,
	}
}

// CreateComplaintInput carries the customer-supplied fields for a new complaint
type CreateComplaintInput struct {
	Category       string
	Priority       string
	Title          string
	Description    string
	Address        string
	GPSCoordinates *string
	ImageS3Key     *string
}

// lifecycle actions checked by authorize
type action string

const (
	actionTransition action = "transition"
	actionAssign     action = "assign"
	actionRate       action = "rate"
)

// authorize is the single policy check evaluated before any mutation.
// Transitions require the assigned staff member or a manager; assignment is
// checked further in Assign (self-assign vs. manager reassign); rating is
// reserved for the owning customer.
func authorize(actor *models.User, act action, complaint *models.Complaint) error {
	switch act {
	case actionTransition:
		if actor.IsManager() {
			return nil
		}
		if actor.IsStaffMember() && complaint.AssignedToID != nil && *complaint.AssignedToID == actor.ID {
			return nil
		}
		return ErrPermissionDenied
	case actionAssign:
		if actor.IsManager() || actor.IsStaffMember() {
			return nil
		}
		return ErrPermissionDenied
	case actionRate:
		if actor.IsCustomer() && complaint.CustomerID == actor.ID {
			return nil
		}
		return ErrPermissionDenied
	}
	return ErrPermissionDenied
}

// statusRank orders the lifecycle for the forward-only rule
var statusRank = map[string]int{
	models.StatusSubmitted:  0,
	models.StatusInProgress: 1,
	models.StatusResolved:   2,
	models.StatusClosed:     3,
}

// allowedTransition encodes the state machine: any move forward along
// submitted -> in_progress -> resolved -> closed is permitted (a complaint
// may be resolved straight from submitted), and managers may reopen a
// resolved or closed complaint back to in_progress. Backward moves like
// closed -> submitted are rejected.
func allowedTransition(oldStatus, newStatus string, byManager bool) bool {
	if statusRank[newStatus] > statusRank[oldStatus] {
		return true
	}
	if (oldStatus == models.StatusResolved || oldStatus == models.StatusClosed) &&
		newStatus == models.StatusInProgress {
		return byManager
	}
	return false
}

// Create files a new complaint for the customer. The complaint code is
// allocated inside the insert transaction; if a concurrent create claims the
// same ordinal first, the unique index rejects the insert and the whole
// attempt is retried with a fresh count.
func (s *ComplaintService) Create(customer *models.User, in CreateComplaintInput) (*models.Complaint, error) {
	if !customer.IsCustomer() {
		return nil, ErrPermissionDenied
	}
	if !models.ValidCategory(in.Category) {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidState, in.Category)
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	if !models.ValidPriority(in.Priority) {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidState, in.Priority)
	}

	now := s.Now()
	var lastErr error
	for attempt := 0; attempt < codeAllocationAttempts; attempt++ {
		complaint := &models.Complaint{
			CustomerID:     customer.ID,
			Category:       in.Category,
			Priority:       in.Priority,
			Status:         models.StatusSubmitted,
			Title:          in.Title,
			Description:    in.Description,
			Address:        in.Address,
			GPSCoordinates: in.GPSCoordinates,
			ImageS3Key:     in.ImageS3Key,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		err := s.db.Transaction(func(tx *gorm.DB) error {
			code, err := nextComplaintCode(tx, s.prefix, now)
			if err != nil {
				return err
			}
			complaint.ComplaintCode = code
			return tx.Create(complaint).Error
		})
		if err == nil {
			s.logger.Info("complaint created",
				zap.String("complaint_code", complaint.ComplaintCode),
				zap.Uint("customer_id", customer.ID),
				zap.String("category", complaint.Category))
			return complaint, nil
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			lastErr = err
			s.logger.Warn("complaint code collision, retrying",
				zap.String("complaint_code", complaint.ComplaintCode),
				zap.Int("attempt", attempt+1))
			continue
		}
		return nil, fmt.Errorf("failed to create complaint: %w", err)
	}
	return nil, fmt.Errorf("%w: %v", ErrConflictRetryable, lastErr)
}

// Transition moves a complaint to newStatus and appends the matching ledger
// entry, atomically. The status column is updated with a compare-and-swap on
// the status the actor observed, so two concurrent transitions cannot both
// claim the same prior state; the loser gets ErrConflictRetryable.
func (s *ComplaintService) Transition(code string, actor *models.User, newStatus, notes string) (*models.Complaint, error) {
	if !models.ValidStatus(newStatus) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidState, newStatus)
	}

	now := s.Now()
	var complaint models.Complaint
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := findByCode(tx, code, &complaint); err != nil {
			return err
		}
		if err := authorize(actor, actionTransition, &complaint); err != nil {
			return err
		}
		oldStatus := complaint.Status
		if !allowedTransition(oldStatus, newStatus, actor.IsManager()) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidState, oldStatus, newStatus)
		}

		updates := map[string]interface{}{
			"status":     newStatus,
			"updated_at": now,
		}
		// resolved_at is written exactly once, on the first transition into
		// resolved, and survives closing or reopening.
		if newStatus == models.StatusResolved && complaint.ResolvedAt == nil {
			updates["resolved_at"] = now
		}

		res := tx.Model(&models.Complaint{}).
			Where("id = ? AND status = ?", complaint.ID, oldStatus).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflictRetryable
		}

		entry := models.StatusUpdate{
			ComplaintID: complaint.ID,
			UpdatedByID: actor.ID,
			OldStatus:   oldStatus,
			NewStatus:   newStatus,
			Notes:       notes,
			CreatedAt:   now,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		complaint.Status = newStatus
		complaint.UpdatedAt = now
		if ts, ok := updates["resolved_at"]; ok {
			t := ts.(time.Time)
			complaint.ResolvedAt = &t
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("complaint status updated",
		zap.String("complaint_code", complaint.ComplaintCode),
		zap.String("new_status", newStatus),
		zap.Uint("actor_id", actor.ID))
	return &complaint, nil
}

// Assign puts a complaint in a staff member's hands. Managers may assign or
// reassign anyone with no status side effect. A staff member may only claim
// an unassigned complaint for themselves; the claim also moves a submitted
// complaint to in_progress with a synthesized ledger note.
func (s *ComplaintService) Assign(code string, actor *models.User, targetStaffID uint) (*models.Complaint, error) {
	now := s.Now()
	var complaint models.Complaint
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := findByCode(tx, code, &complaint); err != nil {
			return err
		}
		if err := authorize(actor, actionAssign, &complaint); err != nil {
			return err
		}

		var target models.User
		if err := tx.First(&target, targetStaffID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: staff %d", ErrNotFound, targetStaffID)
			}
			return err
		}
		if !target.IsStaffMember() {
			return fmt.Errorf("%w: user %q is not staff", ErrInvalidState, target.Username)
		}

		if actor.IsManager() {
			res := tx.Model(&models.Complaint{}).
				Where("id = ?", complaint.ID).
				Updates(map[string]interface{}{"assigned_to_id": target.ID, "updated_at": now})
			if res.Error != nil {
				return res.Error
			}
			complaint.AssignedToID = &target.ID
			complaint.AssignedTo = &target
			complaint.UpdatedAt = now
			return nil
		}

		// Staff self-assign: only themselves, only when nobody holds it yet.
		if target.ID != actor.ID {
			return ErrPermissionDenied
		}
		if complaint.AssignedToID != nil {
			return ErrAlreadyAssigned
		}
		res := tx.Model(&models.Complaint{}).
			Where("id = ? AND assigned_to_id IS NULL", complaint.ID).
			Updates(map[string]interface{}{"assigned_to_id": actor.ID, "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Another staff member claimed it between our read and write.
			return ErrAlreadyAssigned
		}
		complaint.AssignedToID = &actor.ID
		complaint.AssignedTo = &target
		complaint.UpdatedAt = now

		if complaint.Status != models.StatusSubmitted {
			return nil
		}
		res = tx.Model(&models.Complaint{}).
			Where("id = ? AND status = ?", complaint.ID, models.StatusSubmitted).
			Update("status", models.StatusInProgress)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflictRetryable
		}
		entry := models.StatusUpdate{
			ComplaintID: complaint.ID,
			UpdatedByID: actor.ID,
			OldStatus:   models.StatusSubmitted,
			NewStatus:   models.StatusInProgress,
			Notes:       fmt.Sprintf("Complaint assigned to %s", actor.Username),
			CreatedAt:   now,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		complaint.Status = models.StatusInProgress
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("complaint assigned",
		zap.String("complaint_code", complaint.ComplaintCode),
		zap.Uint("staff_id", targetStaffID),
		zap.Uint("actor_id", actor.ID))
	return &complaint, nil
}

// Rate records the owning customer's rating and feedback, once. The
// compare-and-swap on customer_rating IS NULL makes the first write win even
// under concurrent submissions; no ledger entry is produced.
func (s *ComplaintService) Rate(code string, actor *models.User, rating int, feedback string) (*models.Complaint, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidState)
	}

	now := s.Now()
	var complaint models.Complaint
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := findByCode(tx, code, &complaint); err != nil {
			return err
		}
		if err := authorize(actor, actionRate, &complaint); err != nil {
			return err
		}
		if complaint.Status != models.StatusResolved && complaint.Status != models.StatusClosed {
			return fmt.Errorf("%w: complaint is %s", ErrInvalidState, complaint.Status)
		}
		if complaint.CustomerRating != nil {
			return ErrAlreadyRated
		}

		res := tx.Model(&models.Complaint{}).
			Where("id = ? AND customer_rating IS NULL", complaint.ID).
			Updates(map[string]interface{}{
				"customer_rating":   rating,
				"customer_feedback": feedback,
				"updated_at":        now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyRated
		}
		complaint.CustomerRating = &rating
		complaint.CustomerFeedback = &feedback
		complaint.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("complaint rated",
		zap.String("complaint_code", complaint.ComplaintCode),
		zap.Int("rating", rating))
	return &complaint, nil
}

// GetByCode loads a complaint with its customer and assignee
func (s *ComplaintService) GetByCode(code string) (*models.Complaint, error) {
	var complaint models.Complaint
	err := s.db.Preload("Customer").Preload("AssignedTo").
		Where("complaint_code = ?", code).First(&complaint).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: complaint %s", ErrNotFound, code)
		}
		return nil, err
	}
	return &complaint, nil
}

// History returns the complaint's status ledger newest-first. CreatedAt
// descending with the auto-increment ID as tiebreaker reproduces reverse
// insertion order exactly.
func (s *ComplaintService) History(code string) ([]models.StatusUpdate, error) {
	var complaint models.Complaint
	if err := findByCode(s.db, code, &complaint); err != nil {
		return nil, err
	}
	var updates []models.StatusUpdate
	err := s.db.Preload("UpdatedBy").
		Where("complaint_id = ?", complaint.ID).
		Order("created_at DESC, id DESC").
		Find(&updates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load status history: %w", err)
	}
	return updates, nil
}

// ListForCustomer returns the customer's own complaints, newest first
func (s *ComplaintService) ListForCustomer(customerID uint) ([]models.Complaint, error) {
	var complaints []models.Complaint
	err := s.db.Preload("AssignedTo").
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&complaints).Error
	return complaints, err
}

// ListForStaff returns the complaints assigned to a staff member, newest first
func (s *ComplaintService) ListForStaff(staffID uint) ([]models.Complaint, error) {
	var complaints []models.Complaint
	err := s.db.Preload("Customer").
		Where("assigned_to_id = ?", staffID).
		Order("created_at DESC").
		Find(&complaints).Error
	return complaints, err
}

// ListUnassigned returns open complaints waiting for a staff member
func (s *ComplaintService) ListUnassigned() ([]models.Complaint, error) {
	var complaints []models.Complaint
	err := s.db.Preload("Customer").
		Where("assigned_to_id IS NULL AND status IN ?", []string{models.StatusSubmitted, models.StatusInProgress}).
		Order("created_at DESC").
		Find(&complaints).Error
	return complaints, err
}

// List returns complaints matching the scope, newest first, with customer
// and assignee preloaded. Used by the manager list view and the exporter.
func (s *ComplaintService) List(scope Scope) ([]models.Complaint, error) {
	var complaints []models.Complaint
	err := scope.apply(s.db.Model(&models.Complaint{})).
		Preload("Customer").Preload("AssignedTo").
		Order("created_at DESC").
		Find(&complaints).Error
	return complaints, err
}

// findByCode fetches the bare complaint row inside a transaction
func findByCode(tx *gorm.DB, code string, dest *models.Complaint) error {
	err := tx.Where("complaint_code = ?", code).First(dest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: complaint %s", ErrNotFound, code)
		}
		return err
	}
	return nil
}
