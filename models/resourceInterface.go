package models

func (c Company) GetBusinessId() string {
	return c.BusinessId
}

func (w Warehouse) GetBusinessId() string {
	return w.BusinessId
}

func (p Product) GetBusinessId() string {
	return p.BusinessId
}

func (o Order) GetBusinessId() string {
	return o.BusinessId
}

func (t InventoryTransaction) GetBusinessId() string {
	return t.BusinessId
}

func (f FinanceEntry) GetBusinessId() string {
	return f.BusinessId
}

func (h History) GetBusinessId() string {
	return h.BusinessId
}

func (r FulfillmentEventRecord) GetBusinessId() string {
	return r.BusinessId
}

func (u User) GetBusinessId() string {
	return u.BusinessId
}
