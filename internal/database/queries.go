package database

// Migration bookkeeping
const (
	createMigrationsTableSQL = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id SERIAL PRIMARY KEY,
			migration_name VARCHAR(255) NOT NULL UNIQUE,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)`

	listMigrationsSQL = `SELECT migration_name FROM schema_migrations`

	recordMigrationSQL = `INSERT INTO schema_migrations (migration_name) VALUES ($1)`
)

// Order queries. Money columns are read as text and parsed into decimals.
const (
	orderColumns = `
		o.id, o.table_id, t.table_number, o.waiter_id, o.order_time, o.status,
		o.is_paid, o.total_amount::text, o.need_assistance`

	selectOrdersSQL = `SELECT ` + orderColumns + `
		FROM orders o JOIN restaurant_tables t ON t.id = o.table_id`

	InsertOrderSQL = `
		INSERT INTO orders (table_id, waiter_id, order_time, status, is_paid, total_amount, need_assistance)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	GetOrderByIDSQL = selectOrdersSQL + ` WHERE o.id = $1`

	ListOrdersSQL = selectOrdersSQL + ` ORDER BY o.id`

	ListOrdersByTableSQL = selectOrdersSQL + ` WHERE o.table_id = $1 ORDER BY o.id`

	FindOrdersByStatusInSQL = selectOrdersSQL + ` WHERE o.status = ANY($1) ORDER BY o.id`

	FindOrdersByTableAndStatusInSQL = selectOrdersSQL + ` WHERE o.table_id = $1 AND o.status = ANY($2) ORDER BY o.id`

	CompareAndSetOrderStatusSQL = `UPDATE orders SET status = $1 WHERE id = $2 AND status = $3`

	MarkOrderPaidSQL = `UPDATE orders SET is_paid = TRUE WHERE id = $1 AND is_paid = FALSE`

	UpdateOrderTotalSQL = `UPDATE orders SET total_amount = $1 WHERE id = $2`

	SetNeedAssistanceSQL = `UPDATE orders SET need_assistance = $1 WHERE id = $2`

	OrderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`
)

// Order item queries
const (
	orderItemColumns = `
		id, order_id, menu_item_id, menu_item_name, quantity, price::text, note, status, order_at`

	InsertOrderItemSQL = `
		INSERT INTO order_items (order_id, menu_item_id, menu_item_name, quantity, price, note, status, order_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	GetOrderItemSQL = `SELECT ` + orderItemColumns + ` FROM order_items WHERE id = $1`

	FindItemsByOrderSQL = `SELECT ` + orderItemColumns + ` FROM order_items WHERE order_id = $1 ORDER BY id`

	DeleteOrderItemSQL = `DELETE FROM order_items WHERE id = $1`

	UpdateOrderItemStatusSQL = `UPDATE order_items SET status = $1 WHERE id = $2`

	CompareAndSetItemStatusSQL = `UPDATE order_items SET status = $1 WHERE id = $2 AND status = $3`

	AdvanceItemsByStatusSQL = `
		UPDATE order_items SET status = $1
		WHERE order_id = $2 AND status = $3
		RETURNING id`

	ItemExistsSQL = `SELECT EXISTS (SELECT 1 FROM order_items WHERE id = $1)`
)

// Payment queries
const (
	paymentColumns = `id, order_id, amount::text, payment_time, payment_method, receipt_number`

	InsertPaymentSQL = `
		INSERT INTO payments (order_id, amount, payment_time, payment_method, receipt_number)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	GetPaymentSQL = `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	FindPaymentByOrderSQL = `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1`

	ListPaymentsSQL = `SELECT ` + paymentColumns + ` FROM payments ORDER BY id`

	FindPaymentsByTimeRangeSQL = `
		SELECT ` + paymentColumns + ` FROM payments
		WHERE payment_time >= $1 AND payment_time < $2
		ORDER BY payment_time`
)

// Table queries
const (
	tableColumns = `id, table_number, zone, capacity, status, current_waiter_id, occupied_at, is_active`

	GetTableSQL = `SELECT ` + tableColumns + ` FROM restaurant_tables WHERE id = $1`

	FindTableByNumberSQL = `SELECT ` + tableColumns + ` FROM restaurant_tables WHERE table_number = $1`

	ListTablesSQL = `SELECT ` + tableColumns + ` FROM restaurant_tables ORDER BY table_number`

	InsertTableSQL = `
		INSERT INTO restaurant_tables (table_number, zone, capacity, status, current_waiter_id, occupied_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	UpdateTableSQL = `
		UPDATE restaurant_tables
		SET table_number = $1, zone = $2, capacity = $3, status = $4,
		    current_waiter_id = $5, occupied_at = $6, is_active = $7
		WHERE id = $8`
)

// Catalog, user and status log queries
const (
	GetMenuItemSQL = `
		SELECT id, name, category, price::text, is_available, kitchen_type
		FROM menu_items WHERE id = $1`

	GetUserSQL = `SELECT id, name, role FROM users WHERE id = $1`

	InsertOrderStatusLogSQL = `
		INSERT INTO order_status_log (order_id, order_item_id, status, changed_by, changed_at, notes)
		VALUES ($1, $2, $3, $4, $5, $6)`

	GetOrderStatusHistorySQL = `
		SELECT order_id, order_item_id, status, changed_by, changed_at, notes
		FROM order_status_log
		WHERE order_id = $1
		ORDER BY changed_at ASC, id ASC`
)
