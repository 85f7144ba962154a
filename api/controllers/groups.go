package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/dumpsterpool-backend/api/responses"
	"github.com/angelmondragon/dumpsterpool-backend/api/validators"
	"github.com/angelmondragon/dumpsterpool-backend/internal/groups"
	pkgerrors "github.com/angelmondragon/dumpsterpool-backend/pkg/errors"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/logger"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/types"
)

const slotDateLayout = "2006-01-02"

type inviteeRequest struct {
	Name  string  `json:"name" validate:"required,max=100"`
	Email string  `json:"email" validate:"required,email"`
	Phone *string `json:"phone,omitempty" validate:"omitempty,max=30"`
}

type createGroupRequest struct {
	Name            string           `json:"name" validate:"required,max=120"`
	Address         types.Address    `json:"address"`
	MaxParticipants int              `json:"max_participants" validate:"min=2,max=10"`
	TimeSlots       []string         `json:"time_slots" validate:"max=5,dive,datetime=2006-01-02"`
	Invitees        []inviteeRequest `json:"invitees" validate:"dive"`
	VendorName      *string          `json:"vendor_name,omitempty" validate:"omitempty,max=120"`
	VendorWebsite   *string          `json:"vendor_website,omitempty" validate:"omitempty,url"`
}

func (req createGroupRequest) toInput() (groups.CreateGroupInput, error) {
	starts := make([]time.Time, 0, len(req.TimeSlots))
	for _, raw := range req.TimeSlots {
		start, err := time.Parse(slotDateLayout, raw)
		if err != nil {
			return groups.CreateGroupInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid time slot date").
				WithDetails(map[string]string{"time_slots": raw})
		}
		starts = append(starts, start)
	}
	invitees := make([]groups.InviteeInput, 0, len(req.Invitees))
	for _, inv := range req.Invitees {
		invitees = append(invitees, groups.InviteeInput{Name: inv.Name, Email: inv.Email, Phone: inv.Phone})
	}
	return groups.CreateGroupInput{
		Name:            validators.SanitizeString(req.Name, 120),
		Address:         req.Address,
		MaxParticipants: req.MaxParticipants,
		TimeSlotStarts:  starts,
		Invitees:        invitees,
		VendorName:      req.VendorName,
		VendorWebsite:   req.VendorWebsite,
	}, nil
}

// CreateGroup registers a group with its slots and invitees.
func CreateGroup(svc groups.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "group service unavailable"))
			return
		}
		identity, err := identityFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req createGroupRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := req.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Create(r.Context(), identity, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

func ListMyGroups(svc groups.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "group service unavailable"))
			return
		}
		identity, err := identityFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListMine(r.Context(), identity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func GetGroup(svc groups.Service, logg *logger.Logger) http.HandlerFunc {
	return groupAction(svc, logg, func(r *http.Request, s groups.Service, req groupRequest) (any, error) {
		return s.Get(r.Context(), req.groupID, req.identity)
	})
}

func DeleteGroup(svc groups.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "group service unavailable"))
			return
		}
		req, err := parseGroupRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), req.groupID, req.identity); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// BookGroup moves a full group to booked and issues its card.
func BookGroup(svc groups.Service, logg *logger.Logger) http.HandlerFunc {
	return groupAction(svc, logg, func(r *http.Request, s groups.Service, req groupRequest) (any, error) {
		return s.Book(r.Context(), req.groupID, req.identity)
	})
}

type confirmServiceRequest struct {
	VendorReference string  `json:"vendor_reference" validate:"required,max=120"`
	VendorName      *string `json:"vendor_name,omitempty" validate:"omitempty,max=120"`
	VendorWebsite   *string `json:"vendor_website,omitempty" validate:"omitempty,url"`
}

func ConfirmService(svc groups.Service, logg *logger.Logger) http.HandlerFunc {
	return groupAction(svc, logg, func(r *http.Request, s groups.Service, req groupRequest) (any, error) {
		var body confirmServiceRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		return s.ConfirmService(r.Context(), req.groupID, req.identity, groups.ConfirmServiceInput{
			VendorReference: strings.TrimSpace(body.VendorReference),
			VendorName:      body.VendorName,
			VendorWebsite:   body.VendorWebsite,
		})
	})
}

func MarkDisbursed(svc groups.Service, logg *logger.Logger) http.HandlerFunc {
	return groupAction(svc, logg, func(r *http.Request, s groups.Service, req groupRequest) (any, error) {
		return s.MarkDisbursed(r.Context(), req.groupID, req.identity)
	})
}

func groupAction(svc groups.Service, logg *logger.Logger, fn func(*http.Request, groups.Service, groupRequest) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "group service unavailable"))
			return
		}
		req, err := parseGroupRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := fn(r, svc, req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}
