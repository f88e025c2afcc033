package extension

import (
	"fmt"
	"sort"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// LocalizeFunc translates the value of a localizable attribute.
type LocalizeFunc func(moduleID, text string) string

type attributeHolder interface {
	setAttributes(map[string]string)
}

// Populate binds the attributes of desc to obj using the bindings resolved on nt.
// Values are converted to the member types with weak typing ("true" -> bool,
// "3" -> int, "1s" -> time.Duration, "a,b" -> []string). When nt is bound to a
// custom payload, the payload attributes are decoded into the object's payload.
func Populate(obj domain.ExtensionObject, moduleID string, nt *domain.NodeType, desc *domain.NodeDescription, localize LocalizeFunc) error {
	if h, ok := obj.(attributeHolder); ok {
		h.setAttributes(desc.Attributes)
	}

	values, err := bindValues(nt.Fields, desc.Attributes, moduleID, localize)
	if err != nil {
		return err
	}
	if err := decode(values, obj); err != nil {
		return err
	}

	if nt.PayloadField == nil {
		return nil
	}
	carrier, ok := obj.(domain.PayloadCarrier)
	if !ok {
		return fmt.Errorf("type %T does not carry a payload for member '%s'", obj, nt.PayloadField.Member)
	}
	payload, err := bindValues(nt.PayloadFields, desc.Attributes, moduleID, localize)
	if err != nil {
		return err
	}
	return decode(payload, carrier.PayloadTarget())
}

func bindValues(fields map[string]*domain.FieldBinding, attrs map[string]string, moduleID string, localize LocalizeFunc) (map[string]any, error) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names) // Deterministic error reporting

	values := make(map[string]any, len(fields))
	for _, name := range names {
		f := fields[name]
		v, ok := attrs[name]
		if !ok || v == "" {
			if f.Required {
				return nil, fmt.Errorf("%w: '%s'", domain.ErrRequiredAttribute, name)
			}
			continue
		}
		if f.Localizable && localize != nil {
			v = localize(moduleID, v)
		}
		values[f.Member] = v
	}
	return values, nil
}

func decode(values map[string]any, target any) error {
	if len(values) == 0 {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Squash:           true,
		Result:           target,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := decoder.Decode(values); err != nil {
		return fmt.Errorf("failed to bind attributes: %w", err)
	}
	return nil
}
