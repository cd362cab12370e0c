package pgstore

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/swaymx/sway-api/internal/store"
)

func collect[T any](rows pgx.Rows, err error, op string, scan func(pgx.Rows, *T) error) ([]T, error) {
	if err != nil {
		return nil, mapErr(err, op)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var v T
		if err := scan(rows, &v); err != nil {
			return nil, mapErr(err, op)
		}
		out = append(out, v)
	}
	return out, mapErr(rows.Err(), op)
}

func (s *Store) ListConservationStatuses(ctx context.Context) ([]store.ConservationStatus, error) {
	rows, err := s.DB.Query(ctx, `SELECT id, codigo, nombre, COALESCE(descripcion, '')
	                              FROM estados_conservacion ORDER BY nombre`)
	return collect(rows, err, "list conservation statuses", func(r pgx.Rows, v *store.ConservationStatus) error {
		return r.Scan(&v.ID, &v.Code, &v.Name, &v.Description)
	})
}

func (s *Store) ListHabitats(ctx context.Context) ([]store.Habitat, error) {
	rows, err := s.DB.Query(ctx, `SELECT id, nombre, COALESCE(descripcion, '') FROM tipos_habitat ORDER BY nombre`)
	return collect(rows, err, "list habitats", func(r pgx.Rows, v *store.Habitat) error {
		return r.Scan(&v.ID, &v.Name, &v.Description)
	})
}

func (s *Store) ListThreats(ctx context.Context) ([]store.Threat, error) {
	rows, err := s.DB.Query(ctx, `SELECT id, nombre, COALESCE(descripcion, '') FROM tipos_amenaza ORDER BY nombre`)
	return collect(rows, err, "list threats", func(r pgx.Rows, v *store.Threat) error {
		return r.Scan(&v.ID, &v.Name, &v.Description)
	})
}

const speciesColumns = `e.id, e.nombre_comun, e.nombre_cientifico, ec.nombre, ec.codigo, COALESCE(e.imagen_url, '')`

func scanSpecies(r pgx.Row, v *store.Species) error {
	return r.Scan(&v.ID, &v.CommonName, &v.ScientificName, &v.ConservationStatus, &v.ConservationCode, &v.ImageURL)
}

func (s *Store) ListSpecies(ctx context.Context, f store.SpeciesFilter) ([]store.Species, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.DB.Query(ctx, `
		SELECT `+speciesColumns+`
		FROM especies e
		JOIN estados_conservacion ec ON ec.id = e.id_estado_conservacion
		WHERE e.activo
		  AND ($1 = 0 OR e.id_estado_conservacion = $1)
		  AND ($2 = 0 OR EXISTS (SELECT 1 FROM especies_habitats eh
		                         WHERE eh.id_especie = e.id AND eh.id_habitat = $2))
		  AND ($3 = '' OR e.nombre_comun ILIKE '%' || $3 || '%' OR e.nombre_cientifico ILIKE '%' || $3 || '%')
		ORDER BY e.nombre_comun
		LIMIT $4`,
		f.ConservationStatusID, f.HabitatID, f.Search, limit)
	return collect(rows, err, "list species", func(r pgx.Rows, v *store.Species) error {
		return scanSpecies(r, v)
	})
}

func (s *Store) GetSpecies(ctx context.Context, id int64) (store.SpeciesDetail, error) {
	var d store.SpeciesDetail
	err := s.DB.QueryRow(ctx, `
		SELECT `+speciesColumns+`, COALESCE(e.descripcion, '')
		FROM especies e
		JOIN estados_conservacion ec ON ec.id = e.id_estado_conservacion
		WHERE e.id = $1 AND e.activo`, id).
		Scan(&d.ID, &d.CommonName, &d.ScientificName, &d.ConservationStatus, &d.ConservationCode, &d.ImageURL, &d.Description)
	if err != nil {
		return d, mapErr(err, "get species")
	}

	rows, err := s.DB.Query(ctx, `
		SELECT h.id, h.nombre, COALESCE(h.descripcion, '')
		FROM especies_habitats eh JOIN tipos_habitat h ON h.id = eh.id_habitat
		WHERE eh.id_especie = $1 ORDER BY h.nombre`, id)
	if d.Habitats, err = collect(rows, err, "species habitats", func(r pgx.Rows, v *store.Habitat) error {
		return r.Scan(&v.ID, &v.Name, &v.Description)
	}); err != nil {
		return d, err
	}

	rows, err = s.DB.Query(ctx, `
		SELECT a.id, a.nombre, COALESCE(a.descripcion, '')
		FROM especies_amenazas ea JOIN tipos_amenaza a ON a.id = ea.id_amenaza
		WHERE ea.id_especie = $1 ORDER BY a.nombre`, id)
	d.Threats, err = collect(rows, err, "species threats", func(r pgx.Rows, v *store.Threat) error {
		return r.Scan(&v.ID, &v.Name, &v.Description)
	})
	return d, err
}

func (s *Store) CountSpecies(ctx context.Context) (store.SpeciesCounts, error) {
	var c store.SpeciesCounts
	err := s.DB.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE ec.codigo IN ('EN', 'CR'))
		FROM especies e
		JOIN estados_conservacion ec ON ec.id = e.id_estado_conservacion
		WHERE e.activo`).Scan(&c.Catalogued, &c.Endangered)
	return c, mapErr(err, "count species")
}

func scanPlace(r pgx.Rows, v *store.Place) error {
	return r.Scan(&v.ID, &v.Name, &v.ParentID, &v.PostalCode)
}

func (s *Store) ListStates(ctx context.Context) ([]store.Place, error) {
	rows, err := s.DB.Query(ctx, `SELECT id, nombre, 0::bigint, '' FROM estados ORDER BY nombre`)
	return collect(rows, err, "list states", scanPlace)
}

func (s *Store) ListMunicipalities(ctx context.Context, stateID int64) ([]store.Place, error) {
	rows, err := s.DB.Query(ctx, `SELECT id, nombre, id_estado, '' FROM municipios
	                              WHERE id_estado = $1 ORDER BY nombre`, stateID)
	return collect(rows, err, "list municipalities", scanPlace)
}

func (s *Store) ListNeighborhoods(ctx context.Context, municipalityID int64) ([]store.Place, error) {
	rows, err := s.DB.Query(ctx, `SELECT id, nombre, id_municipio, cp FROM colonias
	                              WHERE id_municipio = $1 ORDER BY nombre`, municipalityID)
	return collect(rows, err, "list neighborhoods", scanPlace)
}

func (s *Store) ListStreets(ctx context.Context, neighborhoodID int64) ([]store.Place, error) {
	rows, err := s.DB.Query(ctx, `SELECT id, nombre, id_colonia, '' FROM calles
	                              WHERE id_colonia = $1 ORDER BY nombre`, neighborhoodID)
	return collect(rows, err, "list streets", scanPlace)
}

func (s *Store) ListCardTypes(ctx context.Context) ([]store.CardType, error) {
	rows, err := s.DB.Query(ctx, `SELECT id, nombre FROM tipos_tarjeta ORDER BY nombre`)
	return collect(rows, err, "list card types", func(r pgx.Rows, v *store.CardType) error {
		return r.Scan(&v.ID, &v.Name)
	})
}

func (s *Store) ListProducts(ctx context.Context) ([]store.Product, error) {
	rows, err := s.DB.Query(ctx, `SELECT id, nombre, precio, stock, activo FROM productos
	                              WHERE activo ORDER BY nombre`)
	return collect(rows, err, "list products", func(r pgx.Rows, v *store.Product) error {
		return r.Scan(&v.ID, &v.Name, &v.Price, &v.Stock, &v.Active)
	})
}

func (s *Store) ListSightings(ctx context.Context, limit int) ([]store.SightingView, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.Query(ctx, `
		SELECT a.id, a.fecha, a.latitud::float8, a.longitud::float8, COALESCE(a.notas, ''),
		       e.id, e.nombre_comun, e.nombre_cientifico, u.email,
		       u.nombre, COALESCE(u.apellido_paterno, ''), COALESCE(u.apellido_materno, '')
		FROM avistamientos a
		JOIN especies e ON e.id = a.id_especie
		JOIN usuarios u ON u.id = a.id_usuario
		ORDER BY a.fecha DESC
		LIMIT $1`, limit)
	return collect(rows, err, "list sightings", func(r pgx.Rows, v *store.SightingView) error {
		return r.Scan(&v.ID, &v.ObservedAt, &v.Latitude, &v.Longitude, &v.Notes,
			&v.SpeciesID, &v.CommonName, &v.ScientificName, &v.ReporterEmail,
			&v.Reporter.FirstName, &v.Reporter.PaternalSurname, &v.Reporter.MaternalSurname)
	})
}

func (s *Store) ListOrdersByUser(ctx context.Context, userID int64) ([]store.OrderSummary, error) {
	rows, err := s.DB.Query(ctx, `SELECT id, numero_pedido, total, estatus, fecha_pedido
	                              FROM pedidos WHERE id_usuario = $1 ORDER BY id DESC`, userID)
	return collect(rows, err, "list orders", func(r pgx.Rows, v *store.OrderSummary) error {
		return r.Scan(&v.ID, &v.Number, &v.Total, &v.Status, &v.CreatedAt)
	})
}

func (s *Store) GetOrder(ctx context.Context, id int64) (store.OrderDetail, error) {
	var d store.OrderDetail
	err := s.DB.QueryRow(ctx, `
		SELECT p.id, p.numero_pedido, p.total, p.estatus, p.fecha_pedido, p.id_usuario,
		       COALESCE(p.telefono_contacto, ''),
		       c.nombre || ' ' || d.numero_exterior || ', ' || co.nombre || ', ' || m.nombre || ', ' || es.nombre,
		       COALESCE(pg.numero_enmascarado, '')
		FROM pedidos p
		JOIN direcciones d ON d.id = p.id_direccion
		JOIN calles c ON c.id = d.id_calle
		JOIN colonias co ON co.id = c.id_colonia
		JOIN municipios m ON m.id = co.id_municipio
		JOIN estados es ON es.id = m.id_estado
		LEFT JOIN pagos_pedidos pg ON pg.id_pedido = p.id
		WHERE p.id = $1`, id).
		Scan(&d.ID, &d.Number, &d.Total, &d.Status, &d.CreatedAt, &d.UserID, &d.ContactPhone, &d.Address, &d.PaymentCard)
	if err != nil {
		return d, mapErr(err, "get order")
	}

	rows, err := s.DB.Query(ctx, `
		SELECT dp.id_producto, pr.nombre, dp.cantidad, dp.precio_unitario, dp.subtotal
		FROM detalles_pedido dp JOIN productos pr ON pr.id = dp.id_producto
		WHERE dp.id_pedido = $1 ORDER BY dp.id`, id)
	d.Lines, err = collect(rows, err, "order lines", func(r pgx.Rows, v *store.OrderLineView) error {
		return r.Scan(&v.ProductID, &v.ProductName, &v.Quantity, &v.UnitPrice, &v.Subtotal)
	})
	return d, err
}
