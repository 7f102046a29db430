package controller

import (
	"encoding/xml"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/motorbill/crm/model"
	"gorm.io/gorm"
)

type ExportClients struct {
	XMLName xml.Name    `xml:"clients"`
	Version string      `xml:"version,attr,omitempty"`
	Clients []APIClient `xml:"client"`
}

type APIClient struct {
	ID        uint      `json:"id" xml:"id,attr"`
	Name      string    `json:"name" xml:"name"`
	Address   string    `json:"address,omitempty" xml:"address,omitempty"`
	Country   string    `json:"country,omitempty" xml:"country,omitempty"`
	Phone     string    `json:"phone,omitempty" xml:"phone,omitempty"`
	Email     string    `json:"email,omitempty" xml:"email,omitempty"`
	Archived  bool      `json:"archived" xml:"archived"`
	CreatedAt time.Time `json:"created_at" xml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" xml:"updated_at"`
}

type APIClientList struct {
	XMLName struct{}    `json:"-" xml:"clients"`
	Items   []APIClient `json:"items" xml:"client"`
	Total   int         `json:"total" xml:"total,attr"`
}

func toAPIClient(cl *model.Client) APIClient {
	return APIClient{
		ID:        cl.ID,
		Name:      cl.Name,
		Address:   cl.Address,
		Country:   cl.Country,
		Phone:     cl.Phone,
		Email:     cl.Email,
		Archived:  cl.Archived,
		CreatedAt: cl.CreatedAt,
		UpdatedAt: cl.UpdatedAt,
	}
}

type clientListQuery struct {
	Query    string `query:"q"`
	Archived bool   `query:"archived"`
}

// apiClientList handles GET /api/v1/clients
func (ctrl *controller) apiClientList(c echo.Context) error {
	ownerID := apiOwnerID(c)

	var q clientListQuery
	if err := c.Bind(&q); err != nil {
		return respond(c, http.StatusBadRequest, apiError("bad_query", "invalid query params"))
	}

	clients, err := ctrl.model.ListClients(ownerID, q.Query, q.Archived)
	if err != nil {
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not load clients"))
	}

	items := make([]APIClient, len(clients))
	for i := range clients {
		items[i] = toAPIClient(&clients[i])
	}

	return respond(c, http.StatusOK, APIClientList{Items: items, Total: len(items)})
}

// apiClientGet handles GET /api/v1/clients/:id
func (ctrl *controller) apiClientGet(c echo.Context) error {
	ownerID := apiOwnerID(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return respond(c, http.StatusBadRequest, apiError("bad_request", "invalid id"))
	}

	cl, err := ctrl.model.LoadClient(uint(id), ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respond(c, http.StatusNotFound, apiError("not_found", "client not found"))
		}
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not load client"))
	}

	c.Response().Header().Set("ETag",
		`W/"client-`+strconv.FormatUint(uint64(cl.ID), 10)+
			`-`+strconv.FormatInt(cl.UpdatedAt.Unix(), 10)+`"`)

	return respond(c, http.StatusOK, toAPIClient(cl))
}

// APIClientCreate is the input for POST /api/v1/clients
type APIClientCreate struct {
	Name    string `json:"name" xml:"name"`
	Address string `json:"address,omitempty" xml:"address,omitempty"`
	Country string `json:"country,omitempty" xml:"country,omitempty"`
	Phone   string `json:"phone,omitempty" xml:"phone,omitempty"`
	Email   string `json:"email,omitempty" xml:"email,omitempty"`
}

// apiClientCreate handles POST /api/v1/clients
func (ctrl *controller) apiClientCreate(c echo.Context) error {
	ownerID := apiOwnerID(c)
	if s := apiScopes(c); s != "" && !strings.Contains(s, "write") {
		return respond(c, http.StatusForbidden, apiError("forbidden", "token lacks write scope"))
	}

	var input APIClientCreate
	if err := c.Bind(&input); err != nil {
		return respond(c, http.StatusBadRequest, apiError("bad_request", "invalid request body"))
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return respond(c, http.StatusBadRequest, apiError("validation_error", "name is required"))
	}

	cl := &model.Client{
		OwnerID: ownerID,
		Name:    name,
		Address: strings.TrimSpace(input.Address),
		Country: strings.TrimSpace(input.Country),
		Phone:   strings.TrimSpace(input.Phone),
		Email:   strings.TrimSpace(input.Email),
	}

	if err := ctrl.model.SaveClient(cl, ownerID); err != nil {
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not create client"))
	}

	c.Response().Header().Set("Location", "/api/v1/clients/"+strconv.FormatUint(uint64(cl.ID), 10))
	return respond(c, http.StatusCreated, toAPIClient(cl))
}
