package source

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"iter"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	// Registers the "sqlite3" driver.
	_ "github.com/mattn/go-sqlite3"

	"github.com/jobrunner/travelmap/internal/domain"
	"github.com/jobrunner/travelmap/internal/ports/output"
)

// gpkgTable describes one feature table listed in gpkg_contents.
type gpkgTable struct {
	Name           string
	GeometryColumn string
	GeometryType   string
	SRID           int
}

// GeoPackage reads every feature table of a GeoPackage file in table name
// order. Geometries are decoded from the GeoPackage binary encoding; no
// SpatiaLite extension is needed.
type GeoPackage struct {
	path    string
	name    string
	db      *sql.DB
	tables  []gpkgTable
	license domain.License
}

// OpenGeoPackage opens the file read-only and lists its feature tables.
func OpenGeoPackage(ctx context.Context, path string) (*GeoPackage, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	tables, err := readTables(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	g := &GeoPackage{
		path:    path,
		name:    layerName(path),
		db:      db,
		tables:  tables,
		license: readLicense(path),
	}
	if g.license.IsEmpty() {
		g.license = readGpkgLicense(ctx, db)
	}
	return g, nil
}

// readTables reads feature table information from gpkg_contents.
func readTables(ctx context.Context, db *sql.DB) ([]gpkgTable, error) {
	query := `
		SELECT c.table_name, g.column_name, g.geometry_type_name, g.srs_id
		FROM gpkg_contents c
		JOIN gpkg_geometry_columns g ON c.table_name = g.table_name
		WHERE c.data_type = 'features'
		ORDER BY c.table_name
	`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("reading feature tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []gpkgTable
	for rows.Next() {
		var t gpkgTable
		if err := rows.Scan(&t.Name, &t.GeometryColumn, &t.GeometryType, &t.SRID); err != nil {
			return nil, fmt.Errorf("scanning feature table: %w", err)
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

// readGpkgLicense reads the first gpkg_metadata entry as attribution text.
func readGpkgLicense(ctx context.Context, db *sql.DB) domain.License {
	var exists int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='gpkg_metadata'",
	).Scan(&exists)
	if err != nil || exists == 0 {
		return domain.License{}
	}

	var metadata string
	if err := db.QueryRowContext(ctx, `SELECT metadata FROM gpkg_metadata LIMIT 1`).Scan(&metadata); err != nil {
		return domain.License{}
	}
	return domain.License{Attribution: metadata}
}

// Name implements output.ShapeSource.
func (g *GeoPackage) Name() string { return g.name }

// Info implements output.Describer.
func (g *GeoPackage) Info() output.SourceInfo {
	return output.SourceInfo{Format: FormatGeoPackage, Size: fileSize(g.path), License: g.license}
}

// Shapes implements output.ShapeSource.
func (g *GeoPackage) Shapes(ctx context.Context) iter.Seq2[domain.Shape, error] {
	return func(yield func(domain.Shape, error) bool) {
		for _, t := range g.tables {
			if !g.tableShapes(ctx, t, yield) {
				return
			}
		}
	}
}

// tableShapes yields the rows of one table. It returns false when the
// caller stopped or an error was yielded.
func (g *GeoPackage) tableShapes(ctx context.Context, t gpkgTable, yield func(domain.Shape, error) bool) bool {
	query := fmt.Sprintf(`SELECT * FROM "%s"`, t.Name) //#nosec G201 -- table name from gpkg_contents
	rows, err := g.db.QueryContext(ctx, query)
	if err != nil {
		yield(domain.Shape{}, fmt.Errorf("table %s: %w", t.Name, err))
		return false
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		yield(domain.Shape{}, err)
		return false
	}

	for rows.Next() {
		shape, err := scanShape(rows, columns, t.GeometryColumn)
		if err != nil {
			yield(domain.Shape{}, fmt.Errorf("table %s: %w", t.Name, err))
			return false
		}
		if !yield(shape, nil) {
			return false
		}
	}
	if err := rows.Err(); err != nil {
		yield(domain.Shape{}, err)
		return false
	}
	return true
}

// scanShape scans a row into a shape. The geometry column is decoded, all
// other columns become properties.
func scanShape(rows *sql.Rows, columns []string, geomColumn string) (domain.Shape, error) {
	values := make([]interface{}, len(columns))
	valuePtrs := make([]interface{}, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}
	if err := rows.Scan(valuePtrs...); err != nil {
		return domain.Shape{}, err
	}

	var (
		shape domain.Shape
		blob  []byte
	)
	props := make(map[string]interface{}, len(columns))
	for i, col := range columns {
		switch {
		case col == geomColumn:
			blob, _ = values[i].([]byte)
		case values[i] == nil:
		default:
			if b, ok := values[i].([]byte); ok {
				props[col] = string(b)
			} else {
				props[col] = values[i]
			}
		}
	}

	if len(blob) > 0 {
		geom, err := decodeGeoPackageBinary(blob)
		if err != nil {
			return domain.Shape{}, err
		}
		if geom != nil {
			shape = ShapeFromGeometry(geom, nil)
		}
	}
	shape.Properties = props
	return shape, nil
}

// Close implements output.ShapeSource.
func (g *GeoPackage) Close() error {
	return g.db.Close()
}

var errBadGeoPackageBinary = errors.New("invalid GeoPackage geometry")

// gpkgHeader is the fixed part of a GeoPackage binary geometry.
type gpkgHeader struct {
	Version   byte
	Empty     bool
	SRID      int32
	WKBOffset int
}

// parseGeoPackageHeader reads the "GP" header: magic, version, flags, SRS
// id and an optional envelope whose size the flags encode.
func parseGeoPackageHeader(b []byte) (gpkgHeader, error) {
	if len(b) < 8 || b[0] != 'G' || b[1] != 'P' {
		return gpkgHeader{}, fmt.Errorf("%w: missing GP magic", errBadGeoPackageBinary)
	}
	flags := b[3]

	var order binary.ByteOrder = binary.BigEndian
	if flags&0x01 != 0 {
		order = binary.LittleEndian
	}

	var envelope int
	switch (flags >> 1) & 0x07 {
	case 0:
		envelope = 0
	case 1:
		envelope = 32
	case 2, 3:
		envelope = 48
	case 4:
		envelope = 64
	default:
		return gpkgHeader{}, fmt.Errorf("%w: envelope code %d", errBadGeoPackageBinary, (flags>>1)&0x07)
	}

	h := gpkgHeader{
		Version:   b[2],
		Empty:     flags&0x10 != 0,
		SRID:      int32(order.Uint32(b[4:8])), //#nosec G115 -- srs_id is a signed 32-bit field
		WKBOffset: 8 + envelope,
	}
	if len(b) < h.WKBOffset {
		return gpkgHeader{}, fmt.Errorf("%w: truncated envelope", errBadGeoPackageBinary)
	}
	return h, nil
}

// decodeGeoPackageBinary decodes a GeoPackage geometry blob. Empty
// geometries decode to nil.
func decodeGeoPackageBinary(b []byte) (orb.Geometry, error) {
	h, err := parseGeoPackageHeader(b)
	if err != nil {
		return nil, err
	}
	if h.Empty || len(b) == h.WKBOffset {
		return nil, nil
	}
	return wkb.Unmarshal(b[h.WKBOffset:])
}
