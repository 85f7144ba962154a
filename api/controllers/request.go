package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/dumpsterpool-backend/api/validators"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/auth"
)

type groupRequest struct {
	groupID  uuid.UUID
	identity auth.Identity
}

func parseGroupRequest(r *http.Request) (groupRequest, error) {
	identity, err := identityFrom(r)
	if err != nil {
		return groupRequest{}, err
	}
	groupID, err := validators.ParseUUIDParam(r, "groupId")
	if err != nil {
		return groupRequest{}, err
	}
	return groupRequest{groupID: groupID, identity: identity}, nil
}
