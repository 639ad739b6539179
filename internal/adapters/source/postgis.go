package source

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"net/url"
	"strings"

	"github.com/lib/pq"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/jobrunner/travelmap/internal/domain"
	"github.com/jobrunner/travelmap/internal/ports/output"
)

const (
	defaultGeometryColumn = "geom"
	geometryAlias         = "travelmap_geometry"
)

// PostGISTarget is the table a PostGIS source reads, parsed from the
// source DSN.
type PostGISTarget struct {
	DSN            string // Connection string without the table parameters
	Table          string // Optionally schema qualified table name
	GeometryColumn string
}

// ParsePostGISDSN splits a source DSN such as
// postgres://user@host/db?sslmode=disable&table=public.countries&geometry=geom
// into the connection string and the table to read.
func ParsePostGISDSN(dsn string) (PostGISTarget, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return PostGISTarget{}, err
	}
	q := u.Query()
	target := PostGISTarget{
		Table:          q.Get("table"),
		GeometryColumn: q.Get("geometry"),
	}
	if target.Table == "" {
		return PostGISTarget{}, &domain.ValidationError{
			Field:      "table",
			Value:      dsn,
			Constraint: "required",
			Message:    "postgis source needs a table parameter",
		}
	}
	if target.GeometryColumn == "" {
		target.GeometryColumn = defaultGeometryColumn
	}
	q.Del("table")
	q.Del("geometry")
	u.RawQuery = q.Encode()
	target.DSN = u.String()
	return target, nil
}

// quotedTable quotes each part of a schema qualified table name.
func (t PostGISTarget) quotedTable() string {
	parts := strings.Split(t.Table, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

// Query returns the statement that reads all rows with the geometry as WKB.
func (t PostGISTarget) Query() string {
	return fmt.Sprintf(`SELECT ST_AsBinary(t.%s) AS %s, t.* FROM %s t`,
		pq.QuoteIdentifier(t.GeometryColumn), geometryAlias, t.quotedTable())
}

// PostGIS reads the rows of one PostGIS table.
type PostGIS struct {
	target PostGISTarget
	db     *sql.DB
}

// OpenPostGIS connects to the database named by dsn.
func OpenPostGIS(ctx context.Context, dsn string) (*PostGIS, error) {
	target, err := ParsePostGISDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("postgres", target.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostGIS{target: target, db: db}, nil
}

// Name implements output.ShapeSource.
func (p *PostGIS) Name() string {
	if i := strings.LastIndex(p.target.Table, "."); i >= 0 {
		return p.target.Table[i+1:]
	}
	return p.target.Table
}

// Info implements output.Describer.
func (p *PostGIS) Info() output.SourceInfo {
	return output.SourceInfo{Format: FormatPostGIS}
}

// Shapes implements output.ShapeSource.
func (p *PostGIS) Shapes(ctx context.Context) iter.Seq2[domain.Shape, error] {
	return func(yield func(domain.Shape, error) bool) {
		rows, err := p.db.QueryContext(ctx, p.target.Query())
		if err != nil {
			yield(domain.Shape{}, err)
			return
		}
		defer func() { _ = rows.Close() }()

		columns, err := rows.Columns()
		if err != nil {
			yield(domain.Shape{}, err)
			return
		}

		for rows.Next() {
			shape, err := p.scan(rows, columns)
			if err != nil {
				yield(domain.Shape{}, err)
				return
			}
			if !yield(shape, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(domain.Shape{}, err)
		}
	}
}

func (p *PostGIS) scan(rows *sql.Rows, columns []string) (domain.Shape, error) {
	values := make([]interface{}, len(columns))
	valuePtrs := make([]interface{}, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}
	if err := rows.Scan(valuePtrs...); err != nil {
		return domain.Shape{}, err
	}

	var shape domain.Shape
	props := make(map[string]interface{}, len(columns))
	for i, col := range columns {
		switch {
		case col == geometryAlias:
			b, _ := values[i].([]byte)
			if len(b) == 0 {
				continue
			}
			geom, err := wkb.Unmarshal(b)
			if err != nil {
				return domain.Shape{}, err
			}
			shape = ShapeFromGeometry(geom, nil)
		case col == p.target.GeometryColumn, values[i] == nil:
		default:
			if b, ok := values[i].([]byte); ok {
				props[col] = string(b)
			} else {
				props[col] = values[i]
			}
		}
	}
	shape.Properties = props
	return shape, nil
}

// Close implements output.ShapeSource.
func (p *PostGIS) Close() error {
	return p.db.Close()
}
