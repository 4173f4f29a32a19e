// Package handlers provides HTTP handler implementations for the public API.
// This file defines the Handlers aggregate and its constructor; the
// per-domain endpoint implementations live in sibling files.
package handlers

import (
	"github.com/RAFOUgg/LaFoncedalleBot-sub000/internal/mail"
	"github.com/RAFOUgg/LaFoncedalleBot-sub000/internal/services"
	"github.com/RAFOUgg/LaFoncedalleBot-sub000/internal/shop"
)

// Handlers bundles the services the HTTP endpoints delegate to.
type Handlers struct {
	verSvc    *services.VerificationService
	ratingSvc *services.RatingService
	shop      *shop.Client
	mailer    mail.Mailer
}

// New constructs the handler set. Any dependency may be nil in tests that
// exercise only a subset of routes.
func New(verSvc *services.VerificationService, ratingSvc *services.RatingService, shopClient *shop.Client, mailer mail.Mailer) *Handlers {
	return &Handlers{
		verSvc:    verSvc,
		ratingSvc: ratingSvc,
		shop:      shopClient,
		mailer:    mailer,
	}
}
