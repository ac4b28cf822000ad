package schema

import "time"

const (
	TablePhones         = "phones"
	TablePhoneInquiries = "phone_inquiries"
	TablePhoneReactions = "phone_reactions"
)

func constant(v any) DefaultFunc {
	return func(time.Time) any { return cloneValue(v) }
}

func timestamp(now time.Time) any { return FormatTime(now) }

func idColumn() Column {
	return Column{Name: KeyColumn, DataType: TypeText}
}

func auditColumns() []Column {
	return []Column{
		{Name: "created_at", DataType: TypeTimestamp, Default: timestamp},
		{Name: "updated_at", DataType: TypeTimestamp, Default: timestamp},
	}
}

// MarketplaceTables returns the tables of the phone marketplace.
func MarketplaceTables() []Table {
	phones := Table{
		Name:      TablePhones,
		UpdatedAt: "updated_at",
		Columns: append([]Column{
			idColumn(),
			{Name: "seller_id", DataType: TypeText, IsNullable: true},
			{Name: "title", DataType: TypeText, Default: constant("")},
			{Name: "description", DataType: TypeText, Default: constant("")},
			{Name: "price", DataType: TypeNumber, Default: constant(float64(0))},
			{Name: "tags", DataType: TypeTextArray, Default: constant([]string{})},
			{Name: "images", DataType: TypeTextArray, Default: constant([]string{})},
			{Name: "status", DataType: TypeText, Default: constant("active")},
			{Name: "sale_state", DataType: TypeText, Default: constant("selling")},
			{Name: "address", DataType: TypeText, IsNullable: true},
			{Name: "address_detail", DataType: TypeText, IsNullable: true},
			{Name: "latitude", DataType: TypeNumber, IsNullable: true},
			{Name: "longitude", DataType: TypeNumber, IsNullable: true},
			{Name: "metadata", DataType: TypeJSON, Default: constant(map[string]any{})},
			{Name: "deleted_at", DataType: TypeTimestamp, IsNullable: true},
		}, auditColumns()...),
	}

	inquiries := Table{
		Name:      TablePhoneInquiries,
		UpdatedAt: "updated_at",
		Columns: append([]Column{
			idColumn(),
			{Name: "phone_id", DataType: TypeText, IsNullable: true},
			{Name: "author_id", DataType: TypeText, IsNullable: true},
			{Name: "author_name", DataType: TypeText, Default: constant("")},
			{Name: "parent_id", DataType: TypeText, IsNullable: true},
			{Name: "content", DataType: TypeText, Default: constant("")},
			{Name: "status", DataType: TypeText, Default: constant("active")},
			{Name: "deleted_at", DataType: TypeTimestamp, IsNullable: true},
		}, auditColumns()...),
	}

	reactions := Table{
		Name:      TablePhoneReactions,
		UpdatedAt: "updated_at",
		Columns: append([]Column{
			idColumn(),
			{Name: "phone_id", DataType: TypeText, IsNullable: true},
			{Name: "user_id", DataType: TypeText, IsNullable: true},
			{Name: "type", DataType: TypeText, Default: constant("favorite")},
		}, auditColumns()...),
	}

	return []Table{phones, inquiries, reactions}
}
