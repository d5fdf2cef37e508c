package internal

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/avdeev/mealmart/internal/model"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const (
	orderFields    = "id, number, customer_id, admin_id, courier_id, delivery_date, delivery_time, quantity, calories, price, payment_status, payment_method, prepaid, status, created_at, delivered_at"
	customerFields = "id, name, address, calories, pattern, monday, tuesday, wednesday, thursday, friday, saturday, sunday, active, created_at, last_check_at"
)

const pgUniqueViolation = "23505"

// orderNumberRetries bounds the max+1 retry loop; the UNIQUE index on
// orders.number is what actually guarantees no reuse under concurrency.
const orderNumberRetries = 5

type IRepository interface {
	CreateOrder(context.Context, model.OrderDraft) (model.Order, error)
	GetOrderByNumber(context.Context, int64) (model.Order, error)
	GetOrdersByCustomer(context.Context, int) ([]model.OrderOutput, error)
	CountOrdersByStatus(context.Context, string) (int, error)
	MaxOrderNumber(context.Context) (int64, error)
	ApplyTransition(context.Context, model.TransitionUpdate) error

	CreateCustomer(context.Context, model.CustomerInput) (int, error)
	GetCustomerByID(context.Context, int) (model.Customer, error)
	ListActiveCustomers(context.Context) ([]model.Customer, error)
	TouchLastCheck(context.Context, int, time.Time) error

	HasDispatched(context.Context, int, string) (bool, error)
	MarkDispatched(context.Context, int, string) error
}

type Repository struct {
	Conn   *sql.DB
	Logger *zap.SugaredLogger
}

func NewRepository(connString string, logger *zap.SugaredLogger) (*Repository, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = db.PingContext(ctx); err != nil {
		return nil, err
	}

	if err = migrate(db); err != nil {
		return nil, err
	}

	return &Repository{Conn: db, Logger: logger}, nil
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Up(db, "migrations")
}

// CreateOrder assigns the next order number and inserts the order in one
// transaction. A concurrent creator that grabs the same number trips the
// unique index and we retry with a fresh max.
func (r Repository) CreateOrder(ctx context.Context, d model.OrderDraft) (model.Order, error) {
	for attempt := 0; attempt < orderNumberRetries; attempt++ {
		o, err := r.insertOrder(ctx, d)
		if isUniqueViolation(err) {
			continue
		}
		return o, err
	}
	return model.Order{}, ErrOrderNumberTaken
}

func (r Repository) insertOrder(ctx context.Context, d model.OrderDraft) (model.Order, error) {
	tx, err := r.Conn.BeginTx(ctx, nil)
	if err != nil {
		return model.Order{}, err
	}
	defer tx.Rollback()

	var number int64
	err = tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(number), 0) + 1 FROM orders").Scan(&number)
	if err != nil {
		return model.Order{}, err
	}

	o := model.Order{
		Number:        number,
		CustomerID:    d.CustomerID,
		AdminID:       d.AdminID,
		DeliveryDate:  d.DeliveryDate,
		DeliveryTime:  d.DeliveryTime,
		Quantity:      d.Quantity,
		Calories:      d.Calories,
		Price:         d.Price,
		PaymentStatus: d.PaymentStatus,
		PaymentMethod: d.PaymentMethod,
		Prepaid:       d.Prepaid,
		Status:        d.Status,
		CreatedAt:     time.Now(),
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO orders (number, customer_id, admin_id, delivery_date, delivery_time, quantity, calories, price, payment_status, payment_method, prepaid, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13) RETURNING id`,
		o.Number, o.CustomerID, o.AdminID, o.DeliveryDate, o.DeliveryTime, o.Quantity, o.Calories, o.Price, o.PaymentStatus, o.PaymentMethod, o.Prepaid, o.Status, o.CreatedAt).Scan(&o.ID)
	if err != nil {
		return model.Order{}, err
	}

	if err = tx.Commit(); err != nil {
		return model.Order{}, err
	}
	return o, nil
}

func (r Repository) GetOrderByNumber(ctx context.Context, number int64) (model.Order, error) {
	var o model.Order
	row := r.Conn.QueryRowContext(ctx, "SELECT "+orderFields+" FROM orders WHERE number = $1", number)
	err := row.Scan(&o.ID, &o.Number, &o.CustomerID, &o.AdminID, &o.CourierID, &o.DeliveryDate, &o.DeliveryTime,
		&o.Quantity, &o.Calories, &o.Price, &o.PaymentStatus, &o.PaymentMethod, &o.Prepaid, &o.Status, &o.CreatedAt, &o.DeliveredAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Order{}, fmt.Errorf("%w: order %d", ErrNotFound, number)
		}
		return model.Order{}, err
	}

	return o, nil
}

func (r Repository) GetOrdersByCustomer(ctx context.Context, customerID int) ([]model.OrderOutput, error) {
	rows, err := r.Conn.QueryContext(ctx,
		"SELECT number, delivery_date, delivery_time, quantity, price, payment_status, status, created_at FROM orders WHERE customer_id = $1 ORDER BY created_at DESC", customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []model.OrderOutput
	for rows.Next() {
		var o model.OrderOutput
		err = rows.Scan(&o.Number, &o.DeliveryDate, &o.DeliveryTime, &o.Quantity, &o.Price, &o.PaymentStatus, &o.Status, &o.CreatedAt)
		if err != nil {
			return nil, err
		}

		orders = append(orders, o)
	}

	return orders, rows.Err()
}

func (r Repository) CountOrdersByStatus(ctx context.Context, status string) (int, error) {
	var n int
	err := r.Conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders WHERE status = $1", status).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r Repository) MaxOrderNumber(ctx context.Context) (int64, error) {
	var number int64
	err := r.Conn.QueryRowContext(ctx, "SELECT COALESCE(MAX(number), 0) FROM orders").Scan(&number)
	if err != nil {
		return 0, err
	}
	return number, nil
}

// ApplyTransition commits the status change and its side fields in a single
// UPDATE guarded by the expected prior status. Zero affected rows means the
// order moved underneath us (or does not exist).
func (r Repository) ApplyTransition(ctx context.Context, u model.TransitionUpdate) error {
	courier := sql.NullInt64{Int64: int64(u.CourierID), Valid: u.CourierID != 0}
	var delivered sql.NullTime
	if u.DeliveredAt != nil {
		delivered = sql.NullTime{Time: *u.DeliveredAt, Valid: true}
	}

	res, err := r.Conn.ExecContext(ctx,
		`UPDATE orders SET status = $1, courier_id = COALESCE($2::INT, courier_id), delivered_at = COALESCE($3::TIMESTAMP, delivered_at) WHERE number = $4 AND status = $5`,
		u.ToStatus, courier, delivered, u.Number, u.FromStatus)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: order %d left status %s", ErrInvalidState, u.Number, u.FromStatus)
	}
	return nil
}

func (r Repository) CreateCustomer(ctx context.Context, i model.CustomerInput) (int, error) {
	var id int
	row := r.Conn.QueryRowContext(ctx,
		`INSERT INTO customers (name, address, calories, pattern, monday, tuesday, wednesday, thursday, friday, saturday, sunday, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`,
		i.Name, i.Address, i.Calories, i.Pattern, i.Monday, i.Tuesday, i.Wednesday, i.Thursday, i.Friday, i.Saturday, i.Sunday, time.Now())

	err := row.Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r Repository) GetCustomerByID(ctx context.Context, id int) (model.Customer, error) {
	var cu model.Customer
	row := r.Conn.QueryRowContext(ctx, "SELECT "+customerFields+" FROM customers WHERE id = $1", id)
	err := row.Scan(&cu.ID, &cu.Name, &cu.Address, &cu.Calories, &cu.Pattern, &cu.Monday, &cu.Tuesday, &cu.Wednesday,
		&cu.Thursday, &cu.Friday, &cu.Saturday, &cu.Sunday, &cu.Active, &cu.CreatedAt, &cu.LastCheckAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Customer{}, fmt.Errorf("%w: customer %d", ErrNotFound, id)
		}
		return model.Customer{}, err
	}

	return cu, nil
}

func (r Repository) ListActiveCustomers(ctx context.Context) ([]model.Customer, error) {
	rows, err := r.Conn.QueryContext(ctx, "SELECT "+customerFields+" FROM customers WHERE active = TRUE ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []model.Customer
	for rows.Next() {
		var cu model.Customer
		err = rows.Scan(&cu.ID, &cu.Name, &cu.Address, &cu.Calories, &cu.Pattern, &cu.Monday, &cu.Tuesday, &cu.Wednesday,
			&cu.Thursday, &cu.Friday, &cu.Saturday, &cu.Sunday, &cu.Active, &cu.CreatedAt, &cu.LastCheckAt)
		if err != nil {
			return nil, err
		}

		customers = append(customers, cu)
	}

	return customers, rows.Err()
}

func (r Repository) TouchLastCheck(ctx context.Context, id int, t time.Time) error {
	_, err := r.Conn.ExecContext(ctx, "UPDATE customers SET last_check_at = $1 WHERE id = $2", t, id)
	return err
}

func (r Repository) HasDispatched(ctx context.Context, orderID int, eventName string) (bool, error) {
	exist := false

	row := r.Conn.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM dispatch_log WHERE order_id = $1 AND event_name = $2)", orderID, eventName)
	err := row.Scan(&exist)
	if err != nil {
		return false, fmt.Errorf("%w: %s", ErrLedgerUnavailable, err)
	}

	return exist, nil
}

// MarkDispatched records (order, event) as sent. Losing the insert race to
// a concurrent marker is success: the event is recorded either way.
func (r Repository) MarkDispatched(ctx context.Context, orderID int, eventName string) error {
	_, err := r.Conn.ExecContext(ctx, "INSERT INTO dispatch_log (order_id, event_name, sent_at) VALUES ($1, $2, $3)", orderID, eventName, time.Now())
	if isUniqueViolation(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %s", ErrLedgerUnavailable, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
