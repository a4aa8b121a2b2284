package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"datagate/internal/authz"
	"datagate/internal/metadata"
	"datagate/internal/store"
)

type Handler struct {
	store      *store.Store
	registry   *metadata.Registry
	roleHeader string
	policies   *RequestPolicyEvaluator
}

func NewHandler(s *store.Store, reg *metadata.Registry, roleHeader string) *Handler {
	return &Handler{
		store:      s,
		registry:   reg,
		roleHeader: roleHeader,
		policies:   NewRequestPolicyEvaluator(),
	}
}

// List handles GET /api/:entity
func (h *Handler) List(c *fiber.Ctx) error {
	entity, res, role, err := h.authorize(c, authz.OpRead)
	if err != nil {
		return err
	}

	allowed := res.AllowedColumns(entity.Name, role, authz.OpRead)
	if len(allowed) == 0 {
		return ForbiddenError(fmt.Sprintf("No readable columns on %s for role %s", entity.Name, role))
	}

	plan, err := ParseQueryParams(c, entity, allowed)
	if err != nil {
		return err
	}
	plan.Columns = orderedColumns(entity, allowed)

	if err := h.attachRowPolicy(c, plan, res, entity, role, authz.OpRead); err != nil {
		return err
	}

	qr := BuildSelectSQL(plan)
	rows, err := store.QueryRows(c.Context(), h.store.Pool, qr.SQL, qr.Params...)
	if err != nil {
		return fmt.Errorf("list %s: %w", entity.Name, err)
	}

	cr := BuildCountSQL(plan)
	countRow, err := store.QueryRow(c.Context(), h.store.Pool, cr.SQL, cr.Params...)
	if err != nil {
		return fmt.Errorf("count %s: %w", entity.Name, err)
	}

	if rows == nil {
		rows = []map[string]any{}
	}

	return c.JSON(fiber.Map{
		"data": rows,
		"meta": fiber.Map{
			"page":     plan.Page,
			"per_page": plan.PerPage,
			"total":    countRow["count"],
		},
	})
}

// GetByID handles GET /api/:entity/:id
func (h *Handler) GetByID(c *fiber.Ctx) error {
	entity, res, role, err := h.authorize(c, authz.OpRead)
	if err != nil {
		return err
	}

	allowed := res.AllowedColumns(entity.Name, role, authz.OpRead)
	if len(allowed) == 0 {
		return ForbiddenError(fmt.Sprintf("No readable columns on %s for role %s", entity.Name, role))
	}

	id, err := h.pathID(c, entity)
	if err != nil {
		return err
	}

	plan := &QueryPlan{
		Entity:  entity,
		Columns: orderedColumns(entity, allowed),
		Filters: []WhereClause{{Field: entity.PrimaryKey.Field, Operator: "eq", Value: id}},
		Page:    1,
		PerPage: 1,
	}
	if err := h.attachRowPolicy(c, plan, res, entity, role, authz.OpRead); err != nil {
		return err
	}

	qr := BuildSelectSQL(plan)
	row, err := store.QueryRow(c.Context(), h.store.Pool, qr.SQL, qr.Params...)
	if errors.Is(err, store.ErrNotFound) {
		return NotFoundError(entity.Name, c.Params("id"))
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", entity.Name, err)
	}

	return c.JSON(fiber.Map{"data": row})
}

// Create handles POST /api/:entity
func (h *Handler) Create(c *fiber.Ctx) error {
	entity, res, role, err := h.authorize(c, authz.OpCreate)
	if err != nil {
		return err
	}

	payload, err := h.parsePayload(c, entity)
	if err != nil {
		return err
	}
	if !res.ColumnsAllowed(entity.Name, role, authz.OpCreate, payloadColumns(entity, payload)) {
		return ForbiddenError(fmt.Sprintf("One or more columns are not allowed for create on %s", entity.Name))
	}

	if err := h.checkRequestPolicy(c, res, entity, role, authz.OpCreate, payload); err != nil {
		return err
	}

	pb := &paramBuilder{}
	var cols, placeholders []string
	for _, f := range entity.Fields {
		if val, ok := payload[f.Name]; ok {
			cols = append(cols, f.Name)
			placeholders = append(placeholders, pb.Add(val))
		}
	}
	if len(cols) == 0 {
		return NewAppError("INVALID_PAYLOAD", 400, "Empty request body")
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		entity.Table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	row, err := store.QueryRow(c.Context(), h.store.Pool, sql, pb.params...)
	if err != nil {
		return fmt.Errorf("create %s: %w", entity.Name, err)
	}

	allowed := res.AllowedColumns(entity.Name, role, authz.OpCreate)
	return c.Status(201).JSON(fiber.Map{"data": maskRow(row, allowed)})
}

// Update handles PATCH /api/:entity/:id
func (h *Handler) Update(c *fiber.Ctx) error {
	entity, res, role, err := h.authorize(c, authz.OpUpdate)
	if err != nil {
		return err
	}

	payload, err := h.parsePayload(c, entity)
	if err != nil {
		return err
	}
	if !res.ColumnsAllowed(entity.Name, role, authz.OpUpdate, payloadColumns(entity, payload)) {
		return ForbiddenError(fmt.Sprintf("One or more columns are not allowed for update on %s", entity.Name))
	}

	if err := h.checkRequestPolicy(c, res, entity, role, authz.OpUpdate, payload); err != nil {
		return err
	}

	id, err := h.pathID(c, entity)
	if err != nil {
		return err
	}

	pb := &paramBuilder{}
	var sets []string
	for _, f := range entity.Fields {
		if val, ok := payload[f.Name]; ok {
			sets = append(sets, fmt.Sprintf("%s = %s", f.Name, pb.Add(val)))
		}
	}
	if len(sets) == 0 {
		return NewAppError("INVALID_PAYLOAD", 400, "Empty request body")
	}

	where := fmt.Sprintf("%s = %s", entity.PrimaryKey.Field, pb.Add(id))
	predicate, err := h.rowPolicy(c, res, entity, role, authz.OpUpdate)
	if err != nil {
		return err
	}
	if predicate != "" {
		where += " AND (" + predicate + ")"
	}

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s RETURNING *",
		entity.Table, strings.Join(sets, ", "), where)
	row, err := store.QueryRow(c.Context(), h.store.Pool, sql, pb.params...)
	if errors.Is(err, store.ErrNotFound) {
		return NotFoundError(entity.Name, c.Params("id"))
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", entity.Name, err)
	}

	allowed := res.AllowedColumns(entity.Name, role, authz.OpUpdate)
	return c.JSON(fiber.Map{"data": maskRow(row, allowed)})
}

// Delete handles DELETE /api/:entity/:id
func (h *Handler) Delete(c *fiber.Ctx) error {
	entity, res, role, err := h.authorize(c, authz.OpDelete)
	if err != nil {
		return err
	}

	id, err := h.pathID(c, entity)
	if err != nil {
		return err
	}

	pb := &paramBuilder{}
	where := fmt.Sprintf("%s = %s", entity.PrimaryKey.Field, pb.Add(id))
	predicate, err := h.rowPolicy(c, res, entity, role, authz.OpDelete)
	if err != nil {
		return err
	}
	if predicate != "" {
		where += " AND (" + predicate + ")"
	}

	sql := fmt.Sprintf("DELETE FROM %s WHERE %s", entity.Table, where)
	affected, err := store.Exec(c.Context(), h.store.Pool, sql, pb.params...)
	if err != nil {
		return fmt.Errorf("delete %s: %w", entity.Name, err)
	}
	if affected == 0 {
		return NotFoundError(entity.Name, c.Params("id"))
	}

	return c.SendStatus(204)
}

// Roles handles GET /api/_meta/:entity/roles. It projects which roles hold
// a given operation, optionally narrowed to a single column.
func (h *Handler) Roles(c *fiber.Ctx) error {
	entity, err := h.resolveEntity(c)
	if err != nil {
		return err
	}
	res := h.resolver()

	op, err := authz.ParseOperation(c.Query("operation", "read"))
	if err != nil || op == authz.OpAll {
		return NewAppError("INVALID_PAYLOAD", 400, "Invalid operation")
	}

	var roles []string
	if col := c.Query("column"); col != "" {
		if !entity.HasField(col) {
			return NewAppError("UNKNOWN_FIELD", 400, fmt.Sprintf("Unknown column: %s", col))
		}
		roles = res.RolesForColumn(entity.Name, col, op)
	} else {
		roles = res.RolesForOperation(entity.Name, op)
	}
	if roles == nil {
		roles = []string{}
	}

	return c.JSON(fiber.Map{"data": roles})
}

// Reload handles POST /api/_meta/reload. A failed reload keeps the
// previous snapshot serving.
func (h *Handler) Reload(c *fiber.Ctx) error {
	if err := metadata.Reload(c.Context(), h.store.Pool, h.registry); err != nil {
		return NewAppError("CONFIG_INVALID", 422, fmt.Sprintf("Reload rejected: %v", err))
	}
	return c.JSON(fiber.Map{"message": "Reloaded"})
}

// --- helpers ---

func (h *Handler) resolver() *authz.Resolver {
	return authz.NewResolver(h.registry.Index(), h.registry, h.roleHeader)
}

func (h *Handler) resolveEntity(c *fiber.Ctx) (*metadata.Entity, error) {
	name := c.Params("entity")
	entity := h.registry.GetEntity(name)
	if entity == nil {
		return nil, UnknownEntityError(name)
	}
	return entity, nil
}

// authorize resolves the entity and checks the operation grant for the
// caller's effective role. Later stages use the returned resolver so the
// whole request sees one index snapshot.
func (h *Handler) authorize(c *fiber.Ctx, op authz.Operation) (*metadata.Entity, *authz.Resolver, string, error) {
	entity, err := h.resolveEntity(c)
	if err != nil {
		return nil, nil, "", err
	}
	role := getRole(c)
	res := h.resolver()
	if !res.OperationDefined(entity.Name, role, op) {
		return nil, nil, "", ForbiddenError(fmt.Sprintf("No %s permission on %s for role %s", op, entity.Name, role))
	}
	return entity, res, role, nil
}

func (h *Handler) attachRowPolicy(c *fiber.Ctx, plan *QueryPlan, res *authz.Resolver, entity *metadata.Entity, role string, op authz.Operation) error {
	predicate, err := h.rowPolicy(c, res, entity, role, op)
	if err != nil {
		return err
	}
	plan.Policy = predicate
	return nil
}

func (h *Handler) rowPolicy(c *fiber.Ctx, res *authz.Resolver, entity *metadata.Entity, role string, op authz.Operation) (string, error) {
	claims, err := authz.ExtractClaims(getRequester(c), role)
	if err != nil {
		return "", err
	}
	predicate, err := res.CompileDatabasePolicy(entity.Name, role, op, claims)
	if err != nil {
		return "", err
	}
	if predicate == "" {
		return "", nil
	}
	return BindPolicyColumns(entity, predicate)
}

func (h *Handler) checkRequestPolicy(c *fiber.Ctx, res *authz.Resolver, entity *metadata.Entity, role string, op authz.Operation, record map[string]any) error {
	template := res.RequestPolicy(entity.Name, role, op)
	if template == "" {
		return nil
	}
	claims, err := authz.ExtractClaims(getRequester(c), role)
	if err != nil {
		return err
	}
	pass, err := h.policies.Evaluate(template, claims, record)
	if err != nil {
		return err
	}
	if !pass {
		return ForbiddenError(fmt.Sprintf("Request policy rejected the %s on %s", op, entity.Name))
	}
	return nil
}

func (h *Handler) parsePayload(c *fiber.Ctx, entity *metadata.Entity) (map[string]any, error) {
	var payload map[string]any
	if err := c.BodyParser(&payload); err != nil {
		return nil, NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	for key := range payload {
		if !entity.HasField(key) {
			return nil, NewAppError("UNKNOWN_FIELD", 400, fmt.Sprintf("Unknown field: %s", key))
		}
	}
	return payload, nil
}

func (h *Handler) pathID(c *fiber.Ctx, entity *metadata.Entity) (any, error) {
	field := entity.GetField(entity.PrimaryKey.Field)
	if field == nil {
		return nil, NewAppError("INVALID_PAYLOAD", 400, fmt.Sprintf("Entity %s has no primary key", entity.Name))
	}
	id, err := coerceSingleValue(field, c.Params("id"))
	if err != nil {
		return nil, NewAppError("INVALID_PAYLOAD", 400, fmt.Sprintf("Invalid id: %v", err))
	}
	return id, nil
}

func getRequester(c *fiber.Ctx) authz.Requester {
	req, _ := c.Locals("requester").(authz.Requester)
	return req
}

func getRole(c *fiber.Ctx) string {
	role, _ := c.Locals("role").(string)
	if role == "" {
		return authz.RoleAnonymous
	}
	return role
}

func payloadColumns(entity *metadata.Entity, payload map[string]any) []string {
	var cols []string
	for _, f := range entity.Fields {
		if _, ok := payload[f.Name]; ok {
			cols = append(cols, f.Name)
		}
	}
	return cols
}

func orderedColumns(entity *metadata.Entity, allowed map[string]struct{}) []string {
	var cols []string
	for _, f := range entity.Fields {
		if _, ok := allowed[f.Name]; ok {
			cols = append(cols, f.Name)
		}
	}
	return cols
}

// maskRow drops every column outside the allowed set. The primary key gets
// no carve-out: an excluded column stays excluded on the response path too.
func maskRow(row map[string]any, allowed map[string]struct{}) map[string]any {
	masked := make(map[string]any, len(allowed))
	for col, val := range row {
		if _, ok := allowed[col]; ok {
			masked[col] = val
		}
	}
	return masked
}
