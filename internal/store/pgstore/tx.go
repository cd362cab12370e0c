package pgstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/swaymx/sway-api/internal/store"
)

type tx struct{ tx pgx.Tx }

var _ store.Tx = (*tx)(nil)

const userColumns = `id, nombre, COALESCE(apellido_paterno, ''), COALESCE(apellido_materno, ''), email,
	COALESCE(telefono, ''), suscrito_newsletter, registrado, activo, fecha_registro`

func scanUser(r pgx.Row) (store.User, error) {
	var u store.User
	err := r.Scan(&u.ID, &u.FirstName, &u.PaternalSurname, &u.MaternalSurname, &u.Email,
		&u.Phone, &u.NewsletterOptIn, &u.Registered, &u.Active, &u.RegisteredAt)
	return u, err
}

func (t *tx) FindUserByEmail(ctx context.Context, email string) (store.User, error) {
	u, err := scanUser(t.tx.QueryRow(ctx, `SELECT `+userColumns+` FROM usuarios WHERE email = $1`, email))
	return u, mapErr(err, "find user")
}

func (t *tx) GetUser(ctx context.Context, id int64) (store.User, error) {
	u, err := scanUser(t.tx.QueryRow(ctx, `SELECT `+userColumns+` FROM usuarios WHERE id = $1`, id))
	return u, mapErr(err, "get user")
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (t *tx) CreateUser(ctx context.Context, u store.NewUser) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO usuarios (nombre, apellido_paterno, apellido_materno, email, suscrito_newsletter)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		u.FirstName, nullable(u.PaternalSurname), nullable(u.MaternalSurname), u.Email, u.NewsletterOptIn,
	).Scan(&id)
	return id, mapErr(err, "create user")
}

func (t *tx) SetNewsletter(ctx context.Context, userID int64, subscribed bool) error {
	ct, err := t.tx.Exec(ctx, `UPDATE usuarios SET suscrito_newsletter = $2 WHERE id = $1`, userID, subscribed)
	if err != nil {
		return mapErr(err, "set newsletter")
	}
	if ct.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *tx) SpeciesExists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM especies WHERE id = $1 AND activo)`, id).Scan(&ok)
	return ok, mapErr(err, "species exists")
}

func (t *tx) InsertSighting(ctx context.Context, s store.Sighting) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO avistamientos (id_especie, id_usuario, fecha, latitud, longitud, notas)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		s.SpeciesID, s.UserID, s.ObservedAt, s.Latitude, s.Longitude, nullable(s.Notes),
	).Scan(&id)
	return id, mapErr(err, "insert sighting")
}

type placeTable struct {
	name, parent string
}

var placeTables = map[store.Level]placeTable{
	store.LevelState:        {"estados", ""},
	store.LevelMunicipality: {"municipios", "id_estado"},
	store.LevelNeighborhood: {"colonias", "id_municipio"},
	store.LevelStreet:       {"calles", "id_colonia"},
}

func (t *tx) FindPlace(ctx context.Context, level store.Level, parentID int64, name string) (int64, error) {
	tbl, ok := placeTables[level]
	if !ok {
		return 0, errors.Errorf("pgstore: unknown level %d", level)
	}
	var (
		id  int64
		err error
	)
	if tbl.parent == "" {
		err = t.tx.QueryRow(ctx, `SELECT id FROM `+tbl.name+` WHERE nombre = $1`, name).Scan(&id)
	} else {
		err = t.tx.QueryRow(ctx, fmt.Sprintf(`SELECT id FROM %s WHERE %s = $1 AND nombre = $2`, tbl.name, tbl.parent),
			parentID, name).Scan(&id)
	}
	return id, mapErr(err, "find "+level.String())
}

// CreatePlace inserts against the (parent, nombre) unique key. On conflict
// nothing is returned, so the row the other writer committed is read back.
func (t *tx) CreatePlace(ctx context.Context, level store.Level, p store.Place) (int64, error) {
	tbl, ok := placeTables[level]
	if !ok {
		return 0, errors.Errorf("pgstore: unknown level %d", level)
	}
	var (
		id  int64
		err error
	)
	switch level {
	case store.LevelState:
		err = t.tx.QueryRow(ctx, `INSERT INTO estados (nombre) VALUES ($1)
			ON CONFLICT (nombre) DO NOTHING RETURNING id`, p.Name).Scan(&id)
	case store.LevelNeighborhood:
		err = t.tx.QueryRow(ctx, `INSERT INTO colonias (nombre, cp, id_municipio) VALUES ($1, $2, $3)
			ON CONFLICT (id_municipio, nombre) DO NOTHING RETURNING id`, p.Name, p.PostalCode, p.ParentID).Scan(&id)
	default:
		err = t.tx.QueryRow(ctx, fmt.Sprintf(`INSERT INTO %[1]s (nombre, %[2]s) VALUES ($1, $2)
			ON CONFLICT (%[2]s, nombre) DO NOTHING RETURNING id`, tbl.name, tbl.parent), p.Name, p.ParentID).Scan(&id)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return t.FindPlace(ctx, level, p.ParentID, p.Name)
	}
	return id, mapErr(err, "create "+level.String())
}

func (t *tx) InsertAddress(ctx context.Context, a store.Address) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO direcciones (id_calle, numero_exterior, numero_interior, referencias)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		a.StreetID, a.ExteriorNumber, nullable(a.InteriorNumber), nullable(a.References),
	).Scan(&id)
	return id, mapErr(err, "insert address")
}

// LockProducts takes the row locks in ascending id order so two orders over
// the same products cannot deadlock.
func (t *tx) LockProducts(ctx context.Context, ids []int64) (map[int64]store.Product, error) {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	rows, err := t.tx.Query(ctx, `
		SELECT id, nombre, precio, stock, activo FROM productos
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE`, sorted)
	list, err := collect(rows, err, "lock products", func(r pgx.Rows, v *store.Product) error {
		return r.Scan(&v.ID, &v.Name, &v.Price, &v.Stock, &v.Active)
	})
	if err != nil {
		return nil, err
	}
	out := make(map[int64]store.Product, len(list))
	for _, p := range list {
		out[p.ID] = p
	}
	return out, nil
}

func (t *tx) InsertOrder(ctx context.Context, o store.Order) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO pedidos (numero_pedido, id_usuario, id_direccion, total, estatus, telefono_contacto)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		o.Number, o.UserID, o.AddressID, o.Total, o.Status, nullable(o.ContactPhone),
	).Scan(&id)
	return id, mapErr(err, "insert order")
}

func (t *tx) InsertOrderLine(ctx context.Context, l store.OrderLine) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO detalles_pedido (id_pedido, id_producto, cantidad, precio_unitario, subtotal)
		VALUES ($1, $2, $3, $4, $5)`,
		l.OrderID, l.ProductID, l.Quantity, l.UnitPrice, l.Subtotal)
	return mapErr(err, "insert order line")
}

func (t *tx) InsertPayment(ctx context.Context, p store.Payment) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO pagos_pedidos (id_pedido, metodo, id_tipo_tarjeta, numero_enmascarado, nombre_titular, expiracion, monto)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.OrderID, p.Method, p.CardTypeID, p.MaskedNumber, p.HolderName, p.Expiry, p.Amount)
	return mapErr(err, "insert payment")
}

func (t *tx) DecrementStock(ctx context.Context, productID int64, qty int) (bool, error) {
	ct, err := t.tx.Exec(ctx, `UPDATE productos SET stock = stock - $2 WHERE id = $1 AND stock >= $2`, productID, qty)
	if err != nil {
		return false, mapErr(err, "decrement stock")
	}
	return ct.RowsAffected() == 1, nil
}

func (t *tx) UpdateOrderStatus(ctx context.Context, orderID int64, from, to string) (bool, error) {
	ct, err := t.tx.Exec(ctx, `UPDATE pedidos SET estatus = $3 WHERE id = $1 AND estatus = $2`, orderID, from, to)
	if err != nil {
		return false, mapErr(err, "update order status")
	}
	return ct.RowsAffected() == 1, nil
}

func (t *tx) LockOrder(ctx context.Context, orderID int64) (store.Order, error) {
	var o store.Order
	err := t.tx.QueryRow(ctx, `
		SELECT id, numero_pedido, id_usuario, id_direccion, total, estatus,
		       COALESCE(telefono_contacto, ''), fecha_pedido
		FROM pedidos WHERE id = $1
		FOR UPDATE`, orderID).
		Scan(&o.ID, &o.Number, &o.UserID, &o.AddressID, &o.Total, &o.Status, &o.ContactPhone, &o.CreatedAt)
	return o, mapErr(err, "lock order")
}

func (t *tx) ListOrderLines(ctx context.Context, orderID int64) ([]store.OrderLine, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id_pedido, id_producto, cantidad, precio_unitario, subtotal
		FROM detalles_pedido WHERE id_pedido = $1 ORDER BY id`, orderID)
	return collect(rows, err, "list order lines", func(r pgx.Rows, v *store.OrderLine) error {
		return r.Scan(&v.OrderID, &v.ProductID, &v.Quantity, &v.UnitPrice, &v.Subtotal)
	})
}

func (t *tx) IncrementStock(ctx context.Context, productID int64, qty int) error {
	ct, err := t.tx.Exec(ctx, `UPDATE productos SET stock = stock + $2 WHERE id = $1`, productID, qty)
	if err != nil {
		return mapErr(err, "increment stock")
	}
	if ct.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
