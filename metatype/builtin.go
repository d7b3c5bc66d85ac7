package metatype

import "errors"

// CorePlugin registers the meta tables every installation carries.
func CorePlugin() Plugin {
	return Plugin{
		Name: "core",
		Register: func(r *Registry) error {
			var errs []error
			for _, t := range []struct {
				name    string
				options Options
			}{
				{"post", Options{TableName: "postmeta"}},
				{"comment", Options{TableName: "commentmeta"}},
				{"term", Options{TableName: "termmeta"}},
				{"user", Options{
					TableName: "usermeta",
					Global:    true,
					Columns:   Columns{MetaID: "umeta_id", ObjectID: "user_id"},
				}},
			} {
				if _, err := r.Register(t.name, t.options); err != nil {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		},
	}
}

// EasyDigitalDownloadsPlugin registers the customer meta table.
func EasyDigitalDownloadsPlugin() Plugin {
	return Plugin{
		Name: "easy-digital-downloads",
		Register: func(r *Registry) error {
			_, err := r.Register("customer", Options{TableName: "edd_customermeta"})
			return err
		},
	}
}

// AffiliateWPPlugin registers the affiliate meta table.
func AffiliateWPPlugin() Plugin {
	return Plugin{
		Name: "affiliatewp",
		Register: func(r *Registry) error {
			_, err := r.Register("affiliate", Options{TableName: "affiliate_wp_affiliatemeta"})
			return err
		},
	}
}

// DefaultPlugins returns the core plugin followed by the integrations.
func DefaultPlugins() []Plugin {
	return []Plugin{CorePlugin(), EasyDigitalDownloadsPlugin(), AffiliateWPPlugin()}
}
