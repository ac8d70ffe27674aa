// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
//   - base.go: BaseModel and AggregateModel
//   - catalog.go: products
//   - cart.go: cart_records, one row per (user, product)
//   - order.go: orders and order_lines
//   - outbox.go: outbox_events for reliable event delivery
package models

// All returns every model, in dependency order, for AutoMigrate
func All() []any {
	return []any{
		&ProductModel{},
		&CartRecordModel{},
		&OrderModel{},
		&OrderLineModel{},
		&OutboxEntryModel{},
	}
}
