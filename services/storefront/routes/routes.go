// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package routes mounts the storefront API on a gin engine.
package routes

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/mohinranait/koholi/pkg/extensions"
	"github.com/mohinranait/koholi/services/storefront/accounts"
	"github.com/mohinranait/koholi/services/storefront/handlers"
	"github.com/mohinranait/koholi/services/storefront/media"
	"github.com/mohinranait/koholi/services/storefront/middleware"
	"github.com/mohinranait/koholi/services/storefront/observability"
	"github.com/mohinranait/koholi/services/storefront/orders"
	"github.com/mohinranait/koholi/services/storefront/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the collaborators the routes need.
type Deps struct {
	Store    store.Store
	Auth     extensions.AuthProvider
	Revoker  handlers.Revoker
	Accounts *accounts.Service
	Orders   *orders.Service
	Uploader media.Uploader
	Rotation handlers.Rotation

	// LoginLimiter throttles POST /api/auth/login. Nil disables it.
	LoginLimiter middleware.Limiter

	// Roles re-checks admin sessions against the user record. Nil trusts
	// the session claim alone.
	Roles middleware.RoleSource

	// Auditor receives every authenticated write under /api. Nil disables it.
	Auditor extensions.AuditLogger

	Metrics *observability.Metrics

	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer

	Logger *slog.Logger
}

// SetupRoutes registers every endpoint on router. Request id, logging and
// session middleware are installed on the engine so they also cover 404s.
func SetupRoutes(router *gin.Engine, deps Deps) {
	router.Use(
		middleware.RequestID(),
		middleware.RequestLogger(deps.Logger, deps.Metrics),
		middleware.Authenticate(deps.Auth, deps.Logger),
	)

	router.GET("/health", handlers.HealthCheck(deps.Store))
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	admin := middleware.RequireRole(extensions.RoleAdmin)
	if deps.Roles != nil {
		admin = middleware.RequireCurrentRole(extensions.RoleAdmin, deps.Roles, deps.Logger)
	}
	session := middleware.RequireSession()

	api := router.Group("/api", middleware.Audit(deps.Auditor, deps.Logger))
	{
		categories := api.Group("/categories")
		{
			categories.GET("", handlers.ListCategories(deps.Store.Categories()))
			categories.GET("/slug/:slug", handlers.GetCategoryBySlug(deps.Store.Categories()))
			categories.POST("", admin, handlers.CreateCategory(deps.Store.Categories()))
			categories.PUT("/:id", admin, handlers.UpdateCategory(deps.Store.Categories()))
			categories.DELETE("/:id", admin, handlers.DeleteCategory(deps.Store.Categories()))
		}

		products := api.Group("/products")
		{
			products.GET("", handlers.ListProducts(deps.Store.Products()))
			products.GET("/:id", handlers.GetProduct(deps.Store.Products()))
			products.GET("/slug/:slug", handlers.GetProductBySlug(deps.Store.Products()))
			products.POST("", admin, handlers.CreateProduct(deps.Store.Products()))
			products.PUT("/:id", admin, handlers.UpdateProduct(deps.Store.Products()))
			products.DELETE("/:id", admin, handlers.DeleteProduct(deps.Store.Products()))
		}

		ordersGroup := api.Group("/orders")
		{
			ordersGroup.POST("", handlers.PlaceOrder(deps.Orders))
			ordersGroup.GET("", session, handlers.ListOrders(deps.Orders))
			ordersGroup.PUT("/:id", admin, handlers.UpdateOrder(deps.Orders))
			ordersGroup.DELETE("/:id", admin, handlers.DeleteOrder(deps.Orders))
		}
		api.GET("/dashboard/stats", admin, handlers.DashboardStats(deps.Orders))

		auth := api.Group("/auth")
		{
			login := []gin.HandlerFunc{handlers.Login(deps.Accounts)}
			if deps.LoginLimiter != nil {
				login = append([]gin.HandlerFunc{middleware.RateLimit(deps.LoginLimiter, deps.Logger, deps.Metrics)}, login...)
			}
			auth.POST("/login", login...)
			auth.GET("/me", session, handlers.Me(deps.Accounts))
			auth.POST("/logout", session, handlers.Logout(deps.Revoker))
		}

		users := api.Group("/users", admin)
		{
			users.GET("", handlers.ListUsers(deps.Store.Users()))
			users.POST("", handlers.CreateUser(deps.Store.Users()))
			users.PUT("/:id", handlers.UpdateUser(deps.Store.Users()))
			users.DELETE("/:id", handlers.DeleteUser(deps.Store.Users()))
		}

		api.POST("/media", admin, handlers.UploadMedia(deps.Uploader, deps.Metrics))

		appConfig := api.Group("/app-config")
		{
			appConfig.GET("", admin, handlers.GetAppConfig(deps.Store.Settings()))
			appConfig.PUT("", admin, handlers.UpdateAppConfig(deps.Store.Settings()))
			appConfig.GET("/public", handlers.GetPublicAppConfig(deps.Store.Settings()))
		}

		siteSettings := api.Group("/site-settings")
		{
			siteSettings.GET("", handlers.GetSiteSettings(deps.Store.Settings()))
			siteSettings.PUT("", admin, handlers.UpdateSiteSettings(deps.Store.Settings()))
		}

		proofs := api.Group("/social-proof")
		{
			proofs.GET("", handlers.ListSocialProof(deps.Store.SocialProofs()))
			proofs.GET("/current", handlers.CurrentSocialProof(deps.Rotation))
			proofs.GET("/ws", handlers.SocialProofStream(deps.Rotation))
			proofs.POST("", admin, handlers.CreateSocialProof(deps.Store.SocialProofs()))
			proofs.PATCH("/:id", admin, handlers.PatchSocialProof(deps.Store.SocialProofs()))
			proofs.DELETE("/:id", admin, handlers.DeleteSocialProof(deps.Store.SocialProofs()))
		}
	}
}
