package domain

import "time"

// Order is a row of the orders table.
type Order struct {
	ID        int64     `gorm:"column:id;primaryKey"`
	OrderItem string    `gorm:"column:order_item"`
	Price     int       `gorm:"column:price"`
	OrderDate time.Time `gorm:"column:order_date"`
}

func (Order) TableName() string { return "orders" }

// Account is the settlement of an Order, a row of the accounts table.
type Account struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement:false"`
	OrderItem   string    `gorm:"column:order_item"`
	Price       int       `gorm:"column:price"`
	OrderDate   time.Time `gorm:"column:order_date"`
	AccountDate time.Time `gorm:"column:account_date"`
}

func (Account) TableName() string { return "accounts" }

// NewAccount settles o at now. The account keeps the order id.
func NewAccount(o Order, now time.Time) Account {
	return Account{
		ID:          o.ID,
		OrderItem:   o.OrderItem,
		Price:       o.Price,
		OrderDate:   o.OrderDate,
		AccountDate: now,
	}
}
