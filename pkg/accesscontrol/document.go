package accesscontrol

import (
	"encoding/json"
	"fmt"
)

// aclField is the document field carrying the access control list.
// Domain types embed Controlled so the field name is uniform across
// every controlled document and sub-document.
const aclField = "accessControlList"

// decodeDocument splits a document into fields without disturbing the
// bytes of fields the engine does not touch.
func decodeDocument(doc []byte) (map[string]json.RawMessage, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(doc, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	if raw == nil {
		raw = make(map[string]json.RawMessage)
	}
	return raw, nil
}

func encodeDocument(raw map[string]json.RawMessage) ([]byte, error) {
	doc, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return doc, nil
}

func readACL(raw map[string]json.RawMessage) (ACL, error) {
	field, ok := raw[aclField]
	if !ok {
		return nil, nil
	}
	var acl ACL
	if err := json.Unmarshal(field, &acl); err != nil {
		return nil, fmt.Errorf("failed to decode access control list: %w", err)
	}
	return acl, nil
}

func writeACL(raw map[string]json.RawMessage, acl ACL) error {
	field, err := json.Marshal(acl)
	if err != nil {
		return fmt.Errorf("failed to encode access control list: %w", err)
	}
	raw[aclField] = field
	return nil
}

// decodeSubCollection returns the elements of a named sub-collection
// field. A missing field decodes as empty.
func decodeSubCollection(raw map[string]json.RawMessage, field string) ([]json.RawMessage, error) {
	collection, ok := raw[field]
	if !ok {
		return nil, nil
	}
	var elements []json.RawMessage
	if err := json.Unmarshal(collection, &elements); err != nil {
		return nil, fmt.Errorf("failed to decode sub-collection %s: %w", field, err)
	}
	return elements, nil
}

func subDocumentID(element json.RawMessage) (string, error) {
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(element, &probe); err != nil {
		return "", fmt.Errorf("failed to decode sub-document id: %w", err)
	}
	return probe.ID, nil
}

// mutateSubDocument locates the element with the given id inside the
// sub-collection field, applies mutate to its decoded form, and writes
// the collection back. Reports whether the element was found.
func mutateSubDocument(raw map[string]json.RawMessage, field, subID string, mutate func(sub map[string]json.RawMessage) error) (bool, error) {
	elements, err := decodeSubCollection(raw, field)
	if err != nil {
		return false, err
	}

	for i, element := range elements {
		id, err := subDocumentID(element)
		if err != nil {
			return false, err
		}
		if id != subID {
			continue
		}

		sub, err := decodeDocument(element)
		if err != nil {
			return false, err
		}
		if err := mutate(sub); err != nil {
			return false, err
		}
		encoded, err := encodeDocument(sub)
		if err != nil {
			return false, err
		}
		elements[i] = encoded

		collection, err := json.Marshal(elements)
		if err != nil {
			return false, fmt.Errorf("failed to encode sub-collection %s: %w", field, err)
		}
		raw[field] = collection
		return true, nil
	}

	return false, nil
}

// subDocumentACL returns the ACL of the element with the given id, and
// whether the element exists.
func subDocumentACL(raw map[string]json.RawMessage, field, subID string) (ACL, bool, error) {
	elements, err := decodeSubCollection(raw, field)
	if err != nil {
		return nil, false, err
	}

	for _, element := range elements {
		id, err := subDocumentID(element)
		if err != nil {
			return nil, false, err
		}
		if id != subID {
			continue
		}
		sub, err := decodeDocument(element)
		if err != nil {
			return nil, false, err
		}
		acl, err := readACL(sub)
		if err != nil {
			return nil, false, err
		}
		return acl, true, nil
	}

	return nil, false, nil
}
