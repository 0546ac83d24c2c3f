package views

import (
	"errors"
	"html/template"
	"io"
	"io/fs"

	"surfsup/internal/modules/climate/types"
)

var homeTmpl *template.Template

// loadTemplatesFromFS parses the page templates found in dir of fsys.
// Tests use it to simulate broken template sets.
func loadTemplatesFromFS(fsys fs.FS, dir string) error {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return err
	}
	homeTmpl, err = template.ParseFS(sub, "*.html")
	if err != nil {
		return err
	}
	return nil
}

// LoadTemplates loads the embedded templates. Call during startup before
// serving requests; if it returns an error, do not start the server.
func LoadTemplates() error {
	return loadTemplatesFromFS(viewsFS, "templates")
}

type Route struct {
	Path        string
	Description string
}

// Routes is the listing shown on the home page.
var Routes = []Route{
	{Path: "/api/v1.0/precipitation", Description: "precipitation per date for the last 12 months of data"},
	{Path: "/api/v1.0/stations", Description: "all weather stations"},
	{Path: "/api/v1.0/tobs", Description: "temperatures of the most active station for the last 12 months of data"},
	{Path: "/api/v1.0/<start>", Description: "daily min, mean and max temperature from start (YYYY-MM-DD)"},
	{Path: "/api/v1.0/<start>/<end>", Description: "daily min, mean and max temperature from start to end inclusive"},
}

type HomeData struct {
	Routes   []Route
	Earliest string
	Latest   string
	HasData  bool
}

func NewHomeData(bounds types.DateBounds) *HomeData {
	return &HomeData{
		Routes:   Routes,
		Earliest: bounds.Earliest,
		Latest:   bounds.Latest,
		HasData:  !bounds.Empty(),
	}
}

func RenderHome(w io.Writer, data *HomeData) error {
	if homeTmpl == nil {
		return errors.New("home template not loaded: call views.LoadTemplates during startup")
	}
	return homeTmpl.ExecuteTemplate(w, "home.html", data)
}
