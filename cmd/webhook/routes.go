package main

import (
	Twitter "github.com/Luismorlan/postmux/collector/webhook/twitter"
	"github.com/Luismorlan/postmux/normalizer"
	"github.com/Luismorlan/postmux/store"
	"github.com/gin-gonic/gin"
)

func AddTwitterWebhook(rg *gin.RouterGroup, n *normalizer.Normalizer, s store.RecordStore, q store.LinkQueue) {
	twitter := rg.Group("/twitter")
	handler := &Twitter.MessageHandler{Normalizer: n, Store: s, Links: q}

	twitter.GET("/", Twitter.HandleTwitterCRC)
	twitter.POST("/", handler.HandleTwitterMessage)
}
