package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"online-storefront/internal/models"
)

// OfferRepository handles offer data operations
type OfferRepository struct {
	db *sql.DB
}

// NewOfferRepository creates a new offer repository
func NewOfferRepository(db *sql.DB) *OfferRepository {
	return &OfferRepository{db: db}
}

const offerColumns = `id, name, discount_percentage, min_purchase_amount, max_discount_amount,
	start_date, end_date, active, applicable_products, applicable_categories,
	usage_limit, used_count, created_at, updated_at`

// Create inserts a new offer
func (r *OfferRepository) Create(offer *models.Offer) (*models.Offer, error) {
	if err := offer.Validate(); err != nil {
		return nil, &models.ValidationError{Message: err.Error()}
	}

	query := `
		INSERT INTO offers (name, discount_percentage, min_purchase_amount, max_discount_amount,
			start_date, end_date, active, applicable_products, applicable_categories,
			usage_limit, used_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING ` + offerColumns

	now := time.Now()
	row := r.db.QueryRow(query,
		offer.Name, offer.DiscountPercentage, offer.MinPurchaseAmount, offer.MaxDiscountAmount,
		offer.StartDate, offer.EndDate, offer.Active,
		pq.Array(intsToInt64(offer.ApplicableProducts)),
		pq.Array(intsToInt64(offer.ApplicableCategories)),
		offer.UsageLimit, offer.UsedCount, now, now,
	)

	return scanOffer(row)
}

// GetByID retrieves an offer by ID
func (r *OfferRepository) GetByID(id int) (*models.Offer, error) {
	row := r.db.QueryRow("SELECT "+offerColumns+" FROM offers WHERE id = $1", id)
	offer, err := scanOffer(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrOfferNotFound
	}
	return offer, err
}

// GetActive retrieves all active offers whose validity window contains the
// given instant, in creation order
func (r *OfferRepository) GetActive(instant time.Time) ([]*models.Offer, error) {
	query := "SELECT " + offerColumns + ` FROM offers
		WHERE active = TRUE AND start_date <= $1 AND end_date >= $1
		ORDER BY created_at, id`

	rows, err := r.db.Query(query, instant)
	if err != nil {
		return nil, fmt.Errorf("failed to query active offers: %w", err)
	}
	defer rows.Close()

	var offers []*models.Offer
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, offer)
	}

	return offers, rows.Err()
}

// IncrementUsage consumes one usage of the offer. The conditional update is
// the authority on the usage limit; concurrent checkouts cannot push
// used_count past usage_limit.
func (r *OfferRepository) IncrementUsage(id int) error {
	result, err := r.db.Exec(`
		UPDATE offers
		SET used_count = used_count + 1, updated_at = $2
		WHERE id = $1 AND (usage_limit = -1 OR used_count < usage_limit)`,
		id, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to increment offer usage: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		if _, err := r.GetByID(id); err != nil {
			return err
		}
		return &models.ConflictError{Message: "offer usage limit reached"}
	}

	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOffer(row rowScanner) (*models.Offer, error) {
	offer := &models.Offer{}
	var products, categories []int64

	err := row.Scan(
		&offer.ID, &offer.Name, &offer.DiscountPercentage,
		&offer.MinPurchaseAmount, &offer.MaxDiscountAmount,
		&offer.StartDate, &offer.EndDate, &offer.Active,
		pq.Array(&products), pq.Array(&categories),
		&offer.UsageLimit, &offer.UsedCount,
		&offer.CreatedAt, &offer.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	offer.ApplicableProducts = int64sToInt(products)
	offer.ApplicableCategories = int64sToInt(categories)
	return offer, nil
}

func intsToInt64(values []int) []int64 {
	out := make([]int64, len(values))
	for i, v := range values {
		out[i] = int64(v)
	}
	return out
}

func int64sToInt(values []int64) []int {
	if len(values) == 0 {
		return nil
	}
	out := make([]int, len(values))
	for i, v := range values {
		out[i] = int(v)
	}
	return out
}
