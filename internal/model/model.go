package model

// All returns every model managed by migrations
func All() []interface{} {
	return []interface{}{
		&User{},
		&Agent{},
		&Client{},
		&Category{},
		&Subcategory{},
		&Ticket{},
		&TicketComment{},
		&TicketHistory{},
		&Notification{},
		&RevokedToken{},
	}
}
