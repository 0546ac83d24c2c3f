package controller

import (
	"bytes"
	"net/http"

	"surfsup/internal/modules/climate/types"
	"surfsup/internal/modules/climate/views"
	"surfsup/internal/utils"
)

func (c *climateControllerImpl) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	bounds, err := c.service.Bounds(r.Context())
	if err != nil {
		c.logger.Error("home: get date bounds failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load observation dates")
		return
	}
	var buf bytes.Buffer
	if err := views.RenderHome(&buf, views.NewHomeData(bounds)); err != nil {
		c.logger.Error("home template render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	utils.WriteHTML(w, http.StatusOK, buf.Bytes())
}

func (c *climateControllerImpl) handlePrecipitation(w http.ResponseWriter, r *http.Request) {
	records, err := c.service.Precipitation(r.Context())
	if err != nil {
		c.storeFailure(w, "precipitation", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, records)
}

func (c *climateControllerImpl) handleStations(w http.ResponseWriter, r *http.Request) {
	records, err := c.service.Stations(r.Context())
	if err != nil {
		c.storeFailure(w, "stations", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, records)
}

func (c *climateControllerImpl) handleTobs(w http.ResponseWriter, r *http.Request) {
	records, err := c.service.MostActiveTemperatures(r.Context())
	if err != nil {
		c.storeFailure(w, "tobs", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, records)
}

// handleTemperatureSummary serves both the open-ended and the bounded range;
// the end path value is empty on the open-ended route.
func (c *climateControllerImpl) handleTemperatureSummary(w http.ResponseWriter, r *http.Request) {
	rng, err := types.NewDateRange(r.PathValue("start"), r.PathValue("end"))
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	records, err := c.service.TemperatureSummary(r.Context(), rng)
	if err != nil {
		c.storeFailure(w, "temperature summary", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, records)
}

func (c *climateControllerImpl) storeFailure(w http.ResponseWriter, what string, err error) {
	c.logger.Error(what+": query failed", "error", err)
	utils.WriteError(w, http.StatusInternalServerError, "failed to load "+what)
}
