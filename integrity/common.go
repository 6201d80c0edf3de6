package integrity

import (
	"context"
	"fmt"
	"slices"

	"github.com/wtsi-npg/npg-irods/irods"
	"github.com/wtsi-npg/npg-irods/metadata"
)

func hasAttributes(ctx context.Context, obj *irods.Item, attrs ...string) (bool, error) {
	avus, err := obj.Metadata(ctx)
	if err != nil {
		return false, err
	}

	for _, attr := range attrs {
		if !slices.ContainsFunc(avus, func(a irods.AVU) bool { return a.Attribute == attr }) {
			return false, nil
		}
	}

	return true, nil
}

// HasCreationMetadata returns true if the data object has dcterms creator and
// created AVUs.
func HasCreationMetadata(ctx context.Context, obj *irods.Item) (bool, error) {
	return hasAttributes(ctx, obj, metadata.DCCreated, metadata.DCCreator)
}

// HasTypeMetadata returns true if the data object has a type AVU.
func HasTypeMetadata(ctx context.Context, obj *irods.Item) (bool, error) {
	return hasAttributes(ctx, obj, metadata.Type)
}

// RequiresTypeMetadata returns true if the data object's file type is one that
// is recorded in metadata.
func RequiresTypeMetadata(obj *irods.Item) bool {
	return metadata.IsRecognisedType(metadata.ParseObjectType(obj.Path))
}

// HasCommonMetadata returns true if the data object has creation and checksum
// metadata, and type metadata if its type requires it.
func HasCommonMetadata(ctx context.Context, obj *irods.Item) (bool, error) {
	checks := []func(context.Context, *irods.Item) (bool, error){HasCreationMetadata, HasChecksumMetadata}
	if RequiresTypeMetadata(obj) {
		checks = append(checks, HasTypeMetadata)
	}

	for _, check := range checks {
		ok, err := check(ctx, obj)
		if err != nil || !ok {
			return false, err
		}
	}

	return true, nil
}

// EnsureCommonMetadata adds whichever of the creation, checksum and type AVUs
// the data object lacks. An attribute that is already present is left alone,
// whatever its value. An empty creator is recorded as metadata.WSICreator.
// It returns true if anything was added.
func EnsureCommonMetadata(ctx context.Context, obj *irods.Item, creator string) (bool, error) {
	if creator == "" {
		creator = metadata.WSICreator
	}

	created, err := obj.Created(ctx)
	if err != nil {
		return false, err
	}

	checksum, err := obj.Checksum(ctx)
	if err != nil {
		return false, err
	}

	if checksum == "" {
		return false, fmt.Errorf("%w: %s", ErrNoChecksum, obj.Path)
	}

	wanted := metadata.MakeCreationMetadata(creator, created)
	wanted = append(wanted, metadata.MakeChecksumMetadata(checksum)...)

	if RequiresTypeMetadata(obj) {
		wanted = append(wanted, metadata.MakeTypeMetadata(obj.Path)...)
	}

	avus, err := obj.Metadata(ctx)
	if err != nil {
		return false, err
	}

	missing := slices.DeleteFunc(wanted, func(w irods.AVU) bool {
		return slices.ContainsFunc(avus, func(a irods.AVU) bool { return a.Attribute == w.Attribute })
	})

	n, err := obj.AddMetadata(ctx, missing...)

	return n > 0, err
}
