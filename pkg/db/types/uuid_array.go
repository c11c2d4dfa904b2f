package dbtypes

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// UUIDArray maps to uuid[] on Postgres. Other dialects keep the same array
// literal ({a,b}) in a text column.
type UUIDArray []uuid.UUID

func (UUIDArray) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "uuid[]"
	}
	return "text"
}

func (a UUIDArray) Value() (driver.Value, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, id := range a {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(id.String())
	}
	b.WriteByte('}')
	return b.String(), nil
}

func (a *UUIDArray) Scan(src any) error {
	var literal string
	switch v := src.(type) {
	case nil:
		*a = UUIDArray{}
		return nil
	case string:
		literal = v
	case []byte:
		literal = string(v)
	default:
		return fmt.Errorf("dbtypes: cannot scan %T into UUIDArray", src)
	}

	inner := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(literal), "{"), "}")
	elems := strings.FieldsFunc(inner, func(r rune) bool { return r == ',' })
	ids := make(UUIDArray, 0, len(elems))
	for _, elem := range elems {
		id, err := uuid.Parse(strings.Trim(strings.TrimSpace(elem), `"`))
		if err != nil {
			return fmt.Errorf("dbtypes: uuid array element %q: %w", elem, err)
		}
		ids = append(ids, id)
	}
	*a = ids
	return nil
}
