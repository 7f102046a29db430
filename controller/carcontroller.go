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
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// carInit registers routes for the car catalog.
func (ctrl *controller) carInit(e *echo.Echo) {
	g := e.Group("/car")
	g.Use(ctrl.authMiddleware)
	g.GET("/new", ctrl.carNew)
	g.POST("/new", ctrl.carNew)
	g.GET("/detail/:id", ctrl.carDetail)
	g.GET("/edit/:id", ctrl.carEdit)
	g.POST("/edit/:id", ctrl.carEdit)
	g.POST("/sold/:id", ctrl.carSoldChange)
	lg := e.Group("/cars", ctrl.authMiddleware)
	lg.GET("", ctrl.carList)
}

type carForm struct {
	Make        string `form:"make"`
	ModelName   string `form:"modelname"`
	Year        int    `form:"year"`
	Price       string `form:"price"`
	Description string `form:"description"`
}

func bindCarForm(c echo.Context) (*model.Car, error) {
	if err := c.Request().ParseForm(); err != nil {
		return nil, err
	}
	var cf carForm
	dec := form.NewDecoder()
	if err := dec.Decode(&cf, c.Request().Form); err != nil {
		return nil, err
	}
	car := &model.Car{
		Make:        strings.TrimSpace(cf.Make),
		ModelName:   strings.TrimSpace(cf.ModelName),
		Year:        cf.Year,
		Description: strings.TrimSpace(cf.Description),
	}
	price := commaperiod.Replace(strings.TrimSpace(cf.Price))
	if price != "" {
		p, err := decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("invalid price %q: %w", cf.Price, err)
		}
		car.Price = p
	}
	return car, nil
}

func (ctrl *controller) carNew(c echo.Context) error {
	m := ctrl.defaultResponseMap(c, "New car")
	ownerID := c.Get("ownerid").(uint)

	switch c.Request().Method {
	case http.MethodGet:
		m["car"] = &model.Car{}
		m["action"] = "/car/new"
		m["submit"] = "Add car"
		m["cancel"] = "/cars"
		return c.Render(http.StatusOK, "caredit.html", m)

	case http.MethodPost:
		car, err := bindCarForm(c)
		if err != nil {
			return ErrInvalid(err, "error while processing the form input")
		}
		if car.Make == "" || car.ModelName == "" {
			_ = AddFlash(c, "warning", "Make and model are required.")
			return c.Redirect(http.StatusSeeOther, "/car/new")
		}
		car.OwnerID = ownerID
		if err := ctrl.model.SaveCar(car, ownerID); err != nil {
			return ErrInvalid(err, "error while saving the car")
		}
		return c.Redirect(http.StatusSeeOther, fmt.Sprintf("/car/detail/%d", car.ID))
	}
	return nil
}

func (ctrl *controller) carDetail(c echo.Context) error {
	m := ctrl.defaultResponseMap(c, "Car details")
	ownerID := c.Get("ownerid").(uint)
	car, err := ctrl.model.LoadCar(c.Param("id"), ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalid(err, "car not found")
		}
		return ErrInvalid(err, "error loading car")
	}
	m["title"] = car.Title()
	m["car"] = car
	return c.Render(http.StatusOK, "cardetail.html", m)
}

func (ctrl *controller) carEdit(c echo.Context) error {
	ownerID := c.Get("ownerid").(uint)
	id := c.Param("id")

	car, err := ctrl.model.LoadCar(id, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalid(err, "car not found")
		}
		return ErrInvalid(err, "error loading car")
	}

	switch c.Request().Method {
	case http.MethodGet:
		m := ctrl.defaultResponseMap(c, "Edit car")
		m["title"] = car.Title()
		m["car"] = car
		m["action"] = fmt.Sprintf("/car/edit/%s", id)
		m["submit"] = "Save"
		m["cancel"] = fmt.Sprintf("/car/detail/%s", id)
		return c.Render(http.StatusOK, "caredit.html", m)

	case http.MethodPost:
		bound, err := bindCarForm(c)
		if err != nil {
			return ErrInvalid(err, "error while processing the form input")
		}
		car.Make = bound.Make
		car.ModelName = bound.ModelName
		car.Year = bound.Year
		car.Price = bound.Price
		car.Description = bound.Description
		if err := ctrl.model.SaveCar(car, ownerID); err != nil {
			return ErrInvalid(err, "error while saving the car")
		}
		return c.Redirect(http.StatusSeeOther, fmt.Sprintf("/car/detail/%d", car.ID))
	}
	return nil
}

// carSoldChange toggles the sold flag.
func (ctrl *controller) carSoldChange(c echo.Context) error {
	ownerID := c.Get("ownerid").(uint)
	id64, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return ErrInvalid(err, "invalid car id")
	}
	car, err := ctrl.model.LoadCar(uint(id64), ownerID)
	if err != nil {
		return ErrInvalid(err, "error loading car")
	}
	car.Sold = c.FormValue("sold") != "false"
	if err := ctrl.model.SaveCar(car, ownerID); err != nil {
		return ErrInvalid(err, "error while saving the car")
	}
	if c.Request().Header.Get("X-Requested-With") == "XMLHttpRequest" {
		return c.JSON(http.StatusOK, echo.Map{"sold": car.Sold})
	}
	return c.Redirect(http.StatusSeeOther, fmt.Sprintf("/car/detail/%d", car.ID))
}

func (ctrl *controller) carList(c echo.Context) error {
	m := ctrl.defaultResponseMap(c, "Cars")
	ownerID := c.Get("ownerid").(uint)
	search := strings.TrimSpace(c.QueryParam("query"))

	cars, err := ctrl.model.ListCars(ownerID, search)
	if err != nil {
		return ErrInvalid(err, "error loading cars")
	}
	m["cars"] = cars
	m["query"] = search
	return c.Render(http.StatusOK, "carlist.html", m)
}
