package controller

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/motorbill/crm/model"

	"github.com/go-playground/form/v4"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// clientInit registers routes for creating, viewing, editing and archiving
// clients. All endpoints are authenticated.
func (ctrl *controller) clientInit(e *echo.Echo) {
	g := e.Group("/client")
	g.Use(ctrl.authMiddleware)
	g.GET("/new", ctrl.clientNew)
	g.POST("/new", ctrl.clientNew)
	g.GET("/detail/:id", ctrl.clientDetail)
	g.GET("/edit/:id", ctrl.clientEdit)
	g.POST("/edit/:id", ctrl.clientEdit)
	g.POST("/archive/:id", ctrl.clientArchive)
	lg := e.Group("/clients", ctrl.authMiddleware)
	lg.GET("", ctrl.clientList)
}

// clientForm models the HTML form payload for creating/updating a client.
type clientForm struct {
	Name    string `form:"name"`
	Address string `form:"address"`
	Country string `form:"country"`
	Phone   string `form:"phone"`
	Email   string `form:"email"`
}

func bindClientForm(c echo.Context) (*clientForm, error) {
	if err := c.Request().ParseForm(); err != nil {
		return nil, err
	}
	var cf clientForm
	dec := form.NewDecoder()
	if err := dec.Decode(&cf, c.Request().Form); err != nil {
		return nil, err
	}
	cf.Name = strings.TrimSpace(cf.Name)
	cf.Address = strings.TrimSpace(cf.Address)
	cf.Country = strings.TrimSpace(cf.Country)
	cf.Phone = strings.TrimSpace(cf.Phone)
	cf.Email = strings.TrimSpace(cf.Email)
	return &cf, nil
}

// clientNew serves both GET (render form) and POST (create client).
func (ctrl *controller) clientNew(c echo.Context) error {
	m := ctrl.defaultResponseMap(c, "New client")
	ownerID := c.Get("ownerid").(uint)

	switch c.Request().Method {
	case http.MethodGet:
		m["client"] = &model.Client{}
		m["action"] = "/client/new"
		m["submit"] = "Create client"
		m["cancel"] = "/clients"
		return c.Render(http.StatusOK, "clientedit.html", m)

	case http.MethodPost:
		cf, err := bindClientForm(c)
		if err != nil {
			return ErrInvalid(err, "error while processing the form input")
		}
		if cf.Name == "" {
			_ = AddFlash(c, "warning", "The client needs a name.")
			return c.Redirect(http.StatusSeeOther, "/client/new")
		}
		client := &model.Client{
			OwnerID: ownerID,
			Name:    cf.Name,
			Address: cf.Address,
			Country: cf.Country,
			Phone:   cf.Phone,
			Email:   cf.Email,
		}
		if err := ctrl.model.SaveClient(client, ownerID); err != nil {
			return ErrInvalid(err, "error while creating the client")
		}
		return c.Redirect(http.StatusSeeOther, fmt.Sprintf("/client/detail/%d", client.ID))
	}
	return nil
}

// clientDetail shows the client together with their invoices.
func (ctrl *controller) clientDetail(c echo.Context) error {
	m := ctrl.defaultResponseMap(c, "Client details")
	ownerID := c.Get("ownerid").(uint)
	client, err := ctrl.model.LoadClient(c.Param("id"), ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalid(err, "client not found")
		}
		return ErrInvalid(err, "error loading client")
	}

	invoices, _, err := ctrl.model.ListInvoices(ownerID, model.InvoiceListQuery{
		Search: client.Name,
		Limit:  50,
	})
	if err != nil {
		return ErrInvalid(err, "error loading invoices")
	}

	m["title"] = client.Name
	m["client"] = client
	m["invoices"] = invoices
	return c.Render(http.StatusOK, "clientdetail.html", m)
}

// clientEdit serves both GET (render edit form) and POST (apply updates).
func (ctrl *controller) clientEdit(c echo.Context) error {
	ownerID := c.Get("ownerid").(uint)
	id := c.Param("id")

	client, err := ctrl.model.LoadClient(id, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalid(err, "client not found")
		}
		return ErrInvalid(err, "error loading client")
	}

	switch c.Request().Method {
	case http.MethodGet:
		m := ctrl.defaultResponseMap(c, "Edit client")
		m["title"] = client.Name
		m["client"] = client
		m["action"] = fmt.Sprintf("/client/edit/%s", id)
		m["submit"] = "Save"
		m["cancel"] = fmt.Sprintf("/client/detail/%s", id)
		return c.Render(http.StatusOK, "clientedit.html", m)

	case http.MethodPost:
		cf, err := bindClientForm(c)
		if err != nil {
			return ErrInvalid(err, "error while processing the form input")
		}
		client.Name = cf.Name
		client.Address = cf.Address
		client.Country = cf.Country
		client.Phone = cf.Phone
		client.Email = cf.Email
		if err := ctrl.model.SaveClient(client, ownerID); err != nil {
			return ErrInvalid(err, "error while saving the client")
		}
		// stored invoices keep the client data that was current when they
		// were saved; only future invoices pick up this change
		_ = AddFlash(c, "success", "Client saved. Existing invoices keep their historical client data.")
		return c.Redirect(http.StatusSeeOther, fmt.Sprintf("/client/detail/%d", client.ID))
	}
	return nil
}

// clientArchive toggles the archived flag. Archived clients disappear from
// pickers but stay referenced by their invoices.
func (ctrl *controller) clientArchive(c echo.Context) error {
	ownerID := c.Get("ownerid").(uint)
	id64, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return ErrInvalid(err, "invalid client id")
	}
	archived := c.FormValue("archived") != "false"
	if err := ctrl.model.ArchiveClient(uint(id64), ownerID, archived); err != nil {
		return ErrInvalid(err, "error while archiving the client")
	}
	if c.Request().Header.Get("X-Requested-With") == "XMLHttpRequest" {
		return c.JSON(http.StatusOK, echo.Map{"archived": archived})
	}
	return c.Redirect(http.StatusSeeOther, "/clients")
}

func (ctrl *controller) clientList(c echo.Context) error {
	m := ctrl.defaultResponseMap(c, "Clients")
	ownerID := c.Get("ownerid").(uint)
	search := strings.TrimSpace(c.QueryParam("query"))
	includeArchived := c.QueryParam("archived") == "1"

	clients, err := ctrl.model.ListClients(ownerID, search, includeArchived)
	if err != nil {
		return ErrInvalid(err, "error loading clients")
	}
	m["clients"] = clients
	m["query"] = search
	m["archived"] = includeArchived
	return c.Render(http.StatusOK, "clientlist.html", m)
}
