package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/contact-service/internal/domain"
)

// likeEscaper makes search terms match literally inside LIKE ... ESCAPE '\'.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContactFilter captures list parameters for a single owner.
type ContactFilter struct {
	UserID     string
	SearchTerm string
	Limit      int
	Offset     int
}

// ContactRepository encapsulates contact persistence. Every method is scoped to an owner.
type ContactRepository interface {
	Create(ctx context.Context, contact *domain.Contact) error
	Update(ctx context.Context, contact *domain.Contact) error
	Delete(ctx context.Context, userID, id string) error
	GetByID(ctx context.Context, userID, id string) (*domain.Contact, error)
	List(ctx context.Context, filter ContactFilter) ([]domain.Contact, int, error)
}

type contactRepository struct {
	db DBTX
}

// NewContactRepository instantiates repository.
func NewContactRepository(db DBTX) ContactRepository {
	return &contactRepository{db: db}
}

const contactColumns = `id, user_id, first_name, last_name, contact_number, email_address,
               delivery_address, billing_address, created_at, updated_at`

func (r *contactRepository) Create(ctx context.Context, contact *domain.Contact) error {
	const query = `
        INSERT INTO contacts (user_id, first_name, last_name, contact_number, email_address, delivery_address, billing_address)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		contact.UserID,
		contact.FirstName,
		contact.LastName,
		contact.ContactNumber,
		contact.EmailAddress,
		contact.DeliveryAddress,
		contact.BillingAddress,
	).Scan(&contact.ID, &contact.CreatedAt, &contact.UpdatedAt)
	return translate(err)
}

func (r *contactRepository) Update(ctx context.Context, contact *domain.Contact) error {
	const query = `
        UPDATE contacts SET first_name=$1, last_name=$2, contact_number=$3, email_address=$4,
            delivery_address=$5, billing_address=$6, updated_at=NOW()
        WHERE id=$7 AND user_id=$8
        RETURNING updated_at`
	err := r.db.QueryRow(ctx, query,
		contact.FirstName,
		contact.LastName,
		contact.ContactNumber,
		contact.EmailAddress,
		contact.DeliveryAddress,
		contact.BillingAddress,
		contact.ID,
		contact.UserID,
	).Scan(&contact.UpdatedAt)
	return translate(err)
}

func (r *contactRepository) Delete(ctx context.Context, userID, id string) error {
	const query = `DELETE FROM contacts WHERE id=$1 AND user_id=$2`
	cmd, err := r.db.Exec(ctx, query, id, userID)
	if err != nil {
		return translate(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *contactRepository) GetByID(ctx context.Context, userID, id string) (*domain.Contact, error) {
	const query = `SELECT ` + contactColumns + ` FROM contacts WHERE id=$1 AND user_id=$2`
	var contact domain.Contact
	if err := r.db.QueryRow(ctx, query, id, userID).Scan(
		&contact.ID,
		&contact.UserID,
		&contact.FirstName,
		&contact.LastName,
		&contact.ContactNumber,
		&contact.EmailAddress,
		&contact.DeliveryAddress,
		&contact.BillingAddress,
		&contact.CreatedAt,
		&contact.UpdatedAt,
	); err != nil {
		return nil, translate(err)
	}
	return &contact, nil
}

func (r *contactRepository) List(ctx context.Context, filter ContactFilter) ([]domain.Contact, int, error) {
	clauses := []string{"user_id=$1"}
	args := []any{filter.UserID}

	if term := strings.TrimSpace(filter.SearchTerm); term != "" {
		args = append(args, "%"+likeEscaper.Replace(strings.ToLower(term))+"%")
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf(
			`(LOWER(first_name) LIKE %[1]s ESCAPE '\' OR LOWER(last_name) LIKE %[1]s ESCAPE '\'
              OR LOWER(email_address) LIKE %[1]s ESCAPE '\' OR contact_number LIKE %[1]s ESCAPE '\')`,
			placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s, COUNT(*) OVER() FROM contacts WHERE %s
             ORDER BY last_name, first_name, id LIMIT %d OFFSET %d`,
		contactColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, translate(err)
	}
	defer rows.Close()
	return scanContacts(rows)
}

func scanContacts(rows pgx.Rows) ([]domain.Contact, int, error) {
	result := []domain.Contact{}
	total := 0
	for rows.Next() {
		var contact domain.Contact
		if err := rows.Scan(
			&contact.ID,
			&contact.UserID,
			&contact.FirstName,
			&contact.LastName,
			&contact.ContactNumber,
			&contact.EmailAddress,
			&contact.DeliveryAddress,
			&contact.BillingAddress,
			&contact.CreatedAt,
			&contact.UpdatedAt,
			&total,
		); err != nil {
			return nil, 0, err
		}
		result = append(result, contact)
	}
	return result, total, rows.Err()
}
