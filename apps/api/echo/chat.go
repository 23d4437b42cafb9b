package echoapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/trackit/core/chat"
)

func (api *groupApi) messages(ctx echo.Context) error {
	limit := intQueryParam(ctx, "limit", chat.DefaultLimit)
	msgs, err := api.chatSvc.History(ctx.Request().Context(), ctx.Param("id"), limit)
	if err != nil {
		return errors.Wrap(err, "listing messages")
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *groupApi) postMessage(ctx echo.Context) error {
	var data MessageRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MessageRequest")
	}

	msg, err := api.chatSvc.Post(ctx.Request().Context(), ctx.Param("id"), data.Content)
	if err != nil {
		return errors.Wrap(err, "posting message")
	}
	return ctx.JSON(http.StatusCreated, msg)
}

// streamMessages pushes the group's new messages as server-sent events until the client goes away.
func (api *groupApi) streamMessages(ctx echo.Context) error {
	msgs, err := api.chatSvc.Subscribe(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "subscribing to messages")
	}

	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	for msg := range msgs {
		data, err := json.Marshal(msg)
		if err != nil {
			return errors.Wrap(err, "marshalling message")
		}
		if _, err = fmt.Fprintf(res, "id: %s\nevent: message\ndata: %s\n\n", msg.ID, data); err != nil {
			return nil // client gone
		}
		res.Flush()
	}
	return nil
}

type MessageRequest struct {
	Content string `json:"content"`
}
