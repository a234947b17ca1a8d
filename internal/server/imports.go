package server

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/rcliao/tally-replica/internal/ingest"
	"github.com/rcliao/tally-replica/internal/sheet"
	"github.com/rcliao/tally-replica/internal/store"
)

// ImportsAPI registers the push and fetch routes.
type ImportsAPI struct {
	Router  fiber.Router
	Service *ingest.Service
}

func (api *ImportsAPI) Register() {
	api.Router.Post(
		"/push/tally", func(c *fiber.Ctx) error {
			ctx := c.UserContext()

			mediaType, _, err := mime.ParseMediaType(c.Get(fiber.HeaderContentType))
			if err != nil {
				mediaType = strings.ToLower(strings.TrimSpace(c.Get(fiber.HeaderContentType)))
			}

			var res *ingest.Result
			switch mediaType {
			case fiber.MIMEApplicationJSON:
				res, err = api.Service.Push(ctx, c.Body())
			case fiber.MIMETextXML, fiber.MIMEApplicationXML:
				res, err = api.Service.PushXML(ctx, string(c.Body()), c.Query("source"))
			default:
				return fmt.Errorf("%w: unsupported content type %q", ingest.ErrInvalidInput, mediaType)
			}
			if err != nil {
				return err
			}
			return c.JSON(res)
		},
	)

	api.Router.Get(
		"/imports/latest", func(c *fiber.Ctx) error {
			data, err := api.Service.Fetch(c.UserContext())
			if errors.Is(err, store.ErrEmpty) {
				return c.JSON(fiber.Map{"status": "empty"})
			}
			if err != nil {
				return err
			}
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.SendString(data)
		},
	)

	api.Router.Get(
		"/imports/latest.xlsx", func(c *fiber.Ctx) error {
			doc, err := api.Service.Latest(c.UserContext())
			if errors.Is(err, store.ErrEmpty) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"status": "empty"})
			}
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			if err := sheet.Write(&buf, doc); err != nil {
				return err
			}
			c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
			c.Set(fiber.HeaderContentDisposition, `attachment; filename="tally-latest.xlsx"`)
			return c.Send(buf.Bytes())
		},
	)
}
